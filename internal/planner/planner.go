package planner

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/wizardconnect/match-engine/internal/scoring"
)

// Config holds the ranking knobs for one planning run.
type Config struct {
	// TopK bounds each user's ranked list.
	TopK int

	// MinScore drops candidate pairs below the floor after boosts.
	MinScore int

	Weights scoring.Weights

	// Crush boost multipliers. A declared interest lifts the pair score for
	// both sides, so symmetry is preserved. Zero disables the boost.
	OneWayBoost float64
	MutualBoost float64

	// Workers bounds the scoring pool; 0 means GOMAXPROCS.
	Workers int
}

// Planned is one canonical match row produced by a run: UserID < MatchedUserID
// always. Rank is the position in UserID's list, MatchedRank the position in
// MatchedUserID's list; zero means that side did not select the pair.
type Planned struct {
	UserID             uint64
	MatchedUserID      uint64
	CompatibilityScore int
	Rank               int
	MatchedRank        int
	IsMutualCrush      bool
}

// Crushes indexes one-directional declarations by canonical pair so the
// planner can apply boosts and mutual flags without touching the store.
type Crushes struct {
	declared map[[2]uint64]uint8
}

const (
	lowDeclared  uint8 = 1 // lower user id declared interest in the higher
	highDeclared uint8 = 2
)

func NewCrushes() *Crushes {
	return &Crushes{declared: make(map[[2]uint64]uint8)}
}

// Add records declarer -> target. Idempotent.
func (c *Crushes) Add(declarer, target uint64) {
	if declarer == target {
		return
	}
	key, side := pairKey(declarer, target), lowDeclared
	if declarer > target {
		side = highDeclared
	}
	c.declared[key] |= side
}

// Mutual reports whether both directions were declared.
func (c *Crushes) Mutual(a, b uint64) bool {
	return c.declared[pairKey(a, b)] == lowDeclared|highDeclared
}

// OneWay reports whether exactly one direction was declared.
func (c *Crushes) OneWay(a, b uint64) bool {
	d := c.declared[pairKey(a, b)]
	return d == lowDeclared || d == highDeclared
}

func pairKey(a, b uint64) [2]uint64 {
	if a > b {
		a, b = b, a
	}
	return [2]uint64{a, b}
}

type pairScore struct {
	other uint64
	score int
}

// Plan computes the ranked match set for one campaign.
//
// Users in pinned (manually matched) are removed from the pool entirely.
// Pairwise scoring of the remaining pool fans out over a bounded worker
// pool; ranking and dedup are sequential and fully deterministic: candidates
// sort by descending score with ascending user id as the tie-break, so
// identical inputs always yield an identical plan.
func Plan(ctx context.Context, profiles []scoring.Profile, pinned map[uint64]bool, crushes *Crushes, cfg Config) ([]Planned, error) {
	if crushes == nil {
		crushes = NewCrushes()
	}

	pool := make([]scoring.Profile, 0, len(profiles))
	for _, p := range profiles {
		if !pinned[p.UserID] {
			pool = append(pool, p)
		}
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].UserID < pool[j].UserID })

	if len(pool) < 2 {
		return nil, nil
	}

	// rows[i] holds scored pairs (i, j) for j > i; each worker owns one row,
	// so no locking is needed.
	rows := make([][]pairScore, len(pool))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range pool {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := pool[i]
			var row []pairScore
			for j := i + 1; j < len(pool); j++ {
				b := pool[j]
				base, ok := scoring.Score(a, b, cfg.Weights)
				if !ok {
					continue
				}
				s := boosted(base, a.UserID, b.UserID, crushes, cfg)
				if s < cfg.MinScore {
					continue
				}
				row = append(row, pairScore{other: b.UserID, score: s})
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Fold the triangular score matrix into per-user candidate lists.
	candidates := make(map[uint64][]pairScore, len(pool))
	for i, row := range rows {
		a := pool[i].UserID
		for _, ps := range row {
			candidates[a] = append(candidates[a], ps)
			candidates[ps.other] = append(candidates[ps.other], pairScore{other: a, score: ps.score})
		}
	}

	// Per-user greedy top-K, then one canonical row per unordered pair.
	planned := make(map[[2]uint64]*Planned)
	for _, p := range pool {
		list := candidates[p.UserID]
		sort.Slice(list, func(i, j int) bool {
			if list[i].score != list[j].score {
				return list[i].score > list[j].score
			}
			return list[i].other < list[j].other
		})

		limit := cfg.TopK
		if limit > len(list) {
			limit = len(list)
		}
		for rank := 1; rank <= limit; rank++ {
			other := list[rank-1].other
			key := pairKey(p.UserID, other)
			row, ok := planned[key]
			if !ok {
				row = &Planned{
					UserID:             key[0],
					MatchedUserID:      key[1],
					CompatibilityScore: list[rank-1].score,
					IsMutualCrush:      crushes.Mutual(key[0], key[1]),
				}
				planned[key] = row
			}
			if p.UserID == key[0] {
				row.Rank = rank
			} else {
				row.MatchedRank = rank
			}
		}
	}

	out := make([]Planned, 0, len(planned))
	for _, row := range planned {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].MatchedUserID < out[j].MatchedUserID
	})
	return out, nil
}

// boosted applies the crush multiplier to a base pair score, clamped to 100.
func boosted(base int, a, b uint64, crushes *Crushes, cfg Config) int {
	mult := 1.0
	switch {
	case crushes.Mutual(a, b) && cfg.MutualBoost > 0:
		mult = cfg.MutualBoost
	case crushes.OneWay(a, b) && cfg.OneWayBoost > 0:
		mult = cfg.OneWayBoost
	}
	if mult == 1.0 {
		return base
	}
	s := int(math.Round(float64(base) * mult))
	if s > 100 {
		s = 100
	}
	return s
}
