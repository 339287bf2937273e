package errors

import (
	"fmt"
	"strings"
)

// Kind classifies engine failures so callers can decide whether a retry is
// safe. Conflict and validation failures must never be retried blindly;
// transient store failures may be retried a bounded number of times.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindState          Kind = "state"
	KindTransientStore Kind = "transient_store"
)

// Stable machine-readable codes for the named failures in the engine API.
const (
	CodeNoActiveCampaign    = "no_active_campaign"
	CodeAlreadyGenerating   = "already_generating"
	CodeInvalidState        = "invalid_state"
	CodeAlreadyMatched      = "already_manually_matched"
	CodeSelfMatch           = "self_match"
	CodeIneligibleUser      = "ineligible_user"
	CodeDuplicatePair       = "duplicate_pair"
	CodeStoreWriteFailed    = "store_write_failed"
	CodeIllegalTransition   = "illegal_transition"
	CodeActiveCampaignClash = "active_campaign_clash"
)

// Error is the engine's domain error. It carries enough context
// (campaign, users, phase) for an operator to diagnose a failure from the
// log line alone.
type Error struct {
	Kind       Kind
	Code       string
	Msg        string
	CampaignID uint64
	UserIDs    []uint64
	Phase      string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.CampaignID != 0 {
		fmt.Fprintf(&b, " (campaign=%d", e.CampaignID)
		if len(e.UserIDs) > 0 {
			fmt.Fprintf(&b, " users=%v", e.UserIDs)
		}
		if e.Phase != "" {
			fmt.Fprintf(&b, " phase=%s", e.Phase)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// WithCampaign attaches campaign context and returns the error for chaining.
func (e *Error) WithCampaign(id uint64) *Error {
	e.CampaignID = id
	return e
}

// WithUsers attaches the user ids involved in the failed operation.
func (e *Error) WithUsers(ids ...uint64) *Error {
	e.UserIDs = ids
	return e
}

// WithPhase records the campaign phase at the time of failure.
func (e *Error) WithPhase(phase string) *Error {
	e.Phase = phase
	return e
}

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Msg: msg}
}

func State(code, msg string) *Error {
	return &Error{Kind: KindState, Code: code, Msg: msg}
}

func TransientStore(msg string, cause error) *Error {
	return &Error{Kind: KindTransientStore, Code: CodeStoreWriteFailed, Msg: msg, Err: cause}
}

// KindOf extracts the Kind from any error in the chain, or "" if the error
// is not a domain error.
func KindOf(err error) Kind {
	if e := asDomain(err); e != nil {
		return e.Kind
	}
	return ""
}

// CodeOf extracts the stable code from any error in the chain.
func CodeOf(err error) string {
	if e := asDomain(err); e != nil {
		return e.Code
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsState(err error) bool      { return KindOf(err) == KindState }
func IsTransient(err error) bool  { return KindOf(err) == KindTransientStore }

func asDomain(err error) *Error {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}
