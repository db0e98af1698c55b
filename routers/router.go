package routers

import (
	"net/http"
	"time"

	"scriptslap-server/auth"
	"scriptslap-server/metrics"
	"scriptslap-server/routers/api"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options configures the router around the API handler.
type Options struct {
	Authenticator      auth.Authenticator
	CORSAllowedOrigins []string
	Logger             *zap.Logger
}

func InitRouter(h *api.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(api.Recovery(opts.Logger), api.RequestLogger(opts.Logger), cors.New(corsConfig(opts.CORSAllowedOrigins)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authRequired := api.AuthMiddleware(opts.Authenticator, false)

	// request shims, under the edge function paths and the local ones
	for _, prefix := range []string{"/functions/v1", "/api"} {
		g := r.Group(prefix, authRequired)
		g.POST("/generate-script", h.GenerateScript)
		g.POST("/refine-content", h.RefineContent)
	}

	v1 := r.Group("/v1/api", authRequired)
	{
		v1.GET("/profile", h.GetProfile)
		v1.GET("/scripts", h.ListScripts)
		v1.GET("/scripts/:script_id", h.GetScript)
		v1.DELETE("/scripts/:script_id", h.DeleteScript)
		v1.GET("/scripts/:script_id/refinements", h.ListRefinements)
		v1.PUT("/scripts/:script_id/metadata", h.UpdateMetadata)
		v1.POST("/scripts/:script_id/tags", h.AddTag)
		v1.POST("/scripts/:script_id/export", h.ExportScript)
		v1.POST("/refinements/:refinement_id/select", h.SelectRefinement)
		v1.POST("/refinements/:refinement_id/dismiss", h.DismissRefinement)
	}
	r.GET("/v1/api/scripts/:script_id/ws", api.AuthMiddleware(opts.Authenticator, true), h.ScriptFeed)

	hooks := r.Group("/v1/hooks", api.WorkflowSecret(h.Callbacks))
	{
		hooks.POST("/scripts/:script_id", h.ScriptCallback)
		hooks.POST("/refinements/:refinement_id", h.RefinementCallback)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
