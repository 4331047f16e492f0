package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-bridge/internal/chat"
	"github.com/suPer8Hu/llm-bridge/internal/config"
	"github.com/suPer8Hu/llm-bridge/internal/httpapi/middleware"
	"github.com/suPer8Hu/llm-bridge/internal/ingest"
	"github.com/suPer8Hu/llm-bridge/internal/profile"
)

type Handler struct {
	Cfg      config.Config
	ChatSvc  *chat.Service
	Profiles *profile.Service
	Ingest   *ingest.Pipeline
}

func NewHandler(cfg config.Config, chatSvc *chat.Service, profiles *profile.Service, pipeline *ingest.Pipeline) *Handler {
	return &Handler{Cfg: cfg, ChatSvc: chatSvc, Profiles: profiles, Ingest: pipeline}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
