package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-bridge/internal/common"
	"github.com/suPer8Hu/llm-bridge/internal/profile"
)

// UpdateKeys stores the caller's provider secrets. Omitted fields are left
// unchanged and an empty string clears a field.
func (h *Handler) UpdateKeys(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req profile.Update
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.Profiles.Update(c.Request.Context(), uid, req); err != nil {
		slog.ErrorContext(c.Request.Context(), "profile update failed", "user_id", uid, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to update profile")
		return
	}
	h.GetKeys(c)
}

// GetKeys reports which secrets are set, never their values.
func (h *Handler) GetKeys(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	creds, err := h.Profiles.Credentials(c.Request.Context(), uid)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "profile read failed", "user_id", uid, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to load profile")
		return
	}
	common.OK(c, gin.H{
		"anthropic_api_key":     creds.AnthropicAPIKey != "",
		"aws_access_key_id":     creds.AWSAccessKeyID != "",
		"aws_secret_access_key": creds.AWSSecretAccessKey != "",
		"aws_region":            creds.AWSRegion,
	})
}
