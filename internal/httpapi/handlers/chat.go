package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-bridge/internal/ai"
	"github.com/suPer8Hu/llm-bridge/internal/chat"
	"github.com/suPer8Hu/llm-bridge/internal/common"
)

// chatFail writes the error body chat clients expect: {message, code}.
func chatFail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"message": msg,
		"code":    status,
	})
}

// Chat streams one reply from the provider named in the path as plain
// text, flushing each fragment as it arrives.
func (h *Handler) Chat(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		chatFail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	provider := c.Param("provider")

	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		chatFail(c, http.StatusBadRequest, "invalid json")
		return
	}

	ctx := c.Request.Context()
	st, err := h.ChatSvc.Stream(ctx, uid, provider, req)
	if err != nil {
		status, msg := chatErrorResponse(provider, err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "chat request failed", "provider", provider, "err", err)
		}
		chatFail(c, status, msg)
		return
	}
	defer st.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for frag, err := range st.Fragments() {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// The status is already committed; end the body cleanly. The
			// usage event records the upstream error.
			slog.WarnContext(ctx, "chat stream ended with error", "provider", provider, "err", err)
			return
		}
		if _, werr := c.Writer.WriteString(frag); werr != nil {
			return
		}
		c.Writer.Flush()
	}
}

// chatErrorResponse maps a pre-stream failure to a status and a message a
// user can act on.
func chatErrorResponse(provider string, err error) (int, string) {
	var (
		missing *ai.MissingCredentialError
		invalid *ai.InvalidMessageError
	)
	switch {
	case errors.Is(err, ai.ErrUnknownProvider):
		return http.StatusNotFound, "unknown provider: " + provider
	case errors.As(err, &missing):
		if missing.Field == "Anthropic" {
			return http.StatusUnauthorized, "Anthropic API Key not found. Please set it in your profile settings."
		}
		return http.StatusUnauthorized, missing.Field + " not found. Please set it in your profile settings."
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Error()
	case errors.Is(err, chat.ErrModelRequired):
		return http.StatusBadRequest, err.Error()
	}

	if pe, ok := ai.AsProviderError(err); ok {
		status := pe.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusInternalServerError
		}
		if strings.EqualFold(provider, ai.ProviderAnthropic) && status == http.StatusUnauthorized {
			return status, "Anthropic API Key is incorrect. Please fix it in your profile settings."
		}
		return status, pe.Error()
	}
	return http.StatusInternalServerError, "An unexpected error occurred"
}

func (h *Handler) ListUsage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeID uint64
	if s := c.Query("before_id"); s != "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			beforeID = n
		}
	}

	recs, err := h.ChatSvc.ListUsage(c.Request.Context(), uid, limit, beforeID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list usage")
		return
	}

	var nextBeforeID uint64
	if len(recs) > 0 {
		nextBeforeID = recs[len(recs)-1].ID
	}
	common.OK(c, gin.H{
		"records":        recs,
		"next_before_id": nextBeforeID,
	})
}
