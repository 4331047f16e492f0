package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-bridge/internal/common"
	"github.com/suPer8Hu/llm-bridge/internal/httpapi/handlers"
	"github.com/suPer8Hu/llm-bridge/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())
	r.Use(middleware.Recovery())
	if len(h.Cfg.CORSAllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  h.Cfg.CORSAllowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut},
			AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposeHeaders: []string{middleware.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	if h.Cfg.UploadMaxBytes > 0 {
		r.MaxMultipartMemory = h.Cfg.UploadMaxBytes
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(h.Cfg.JWTSecret))
	api.POST("/chat/:provider", h.Chat)
	api.POST("/process-files", h.ProcessFiles)
	api.GET("/profile/keys", h.GetKeys)
	api.PUT("/profile/keys", h.UpdateKeys)
	api.GET("/usage", h.ListUsage)
	return r
}
