package api

import (
	"scriptslap-server/auth"
	"scriptslap-server/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const principalKey = "principal"

// Handler serves the HTTP API on top of the services.
type Handler struct {
	Generation *service.GenerationService
	Refinement *service.RefinementService
	Editor     *service.EditorService
	History    *service.HistoryService
	Callbacks  *service.CallbackService
	Watcher    *service.Watcher
	Logger     *zap.Logger
}

func principalFrom(c *gin.Context) auth.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(auth.Principal); ok {
			return p
		}
	}
	return auth.Principal{}
}
