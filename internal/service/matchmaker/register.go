package matchmaker

import (
	"github.com/gin-gonic/gin"

	"github.com/wizardconnect/match-engine/internal/app"
)

// Registrar ties the matchmaker service into the HTTP server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the matchmaker service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the matchmaker handlers to the router
func (r *Registrar) Register(e *gin.Engine) {
	handler := NewHandler(NewService(r.appCtx))
	handler.RegisterRoutes(e.Group("/api/v1"))
}
