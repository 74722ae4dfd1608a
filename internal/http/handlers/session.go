package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/steveyiyo/tutor-voice/internal/core/openai"
	"github.com/steveyiyo/tutor-voice/internal/core/relay"
	"github.com/steveyiyo/tutor-voice/pkg/types"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	Svc *relay.Service
	Log *slog.Logger
}

func NewSessionHandler(svc *relay.Service, log *slog.Logger) *SessionHandler {
	return &SessionHandler{Svc: svc, Log: log}
}

// Create mints a realtime credential. The request has no body.
func (h *SessionHandler) Create(c *gin.Context) {
	resp, err := h.Svc.Issue(c.Request.Context())
	if err != nil {
		if errors.Is(err, relay.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, types.ErrorResp{Error: "not_configured"})
			return
		}
		h.Log.Warn("mint failed", slog.String("error", err.Error()))
		out := types.ErrorResp{Error: "mint_failed"}
		var me *openai.MintError
		if errors.As(err, &me) {
			out.Status = me.Status
		}
		c.JSON(http.StatusBadGateway, out)
		return
	}
	h.Log.Info("credential issued", slog.String("session_id", resp.SessionID), slog.String("model", resp.Model))
	c.JSON(http.StatusOK, resp)
}
