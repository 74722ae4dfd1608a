package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/steveyiyo/tutor-voice/internal/core/relay"
	"github.com/steveyiyo/tutor-voice/pkg/types"

	"github.com/gin-gonic/gin"
)

type AnswerHandler struct {
	Solver relay.Solver
	Log    *slog.Logger
}

func NewAnswerHandler(s relay.Solver, log *slog.Logger) *AnswerHandler {
	return &AnswerHandler{Solver: s, Log: log}
}

func (h *AnswerHandler) Solve(c *gin.Context) {
	var req types.AnswerReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResp{Error: "bad_request"})
		return
	}
	if h.Solver == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResp{Error: "not_configured"})
		return
	}
	answer, err := h.Solver.Solve(c.Request.Context(), req.Question)
	if err != nil {
		h.Log.Warn("solve failed", slog.String("provider", h.Solver.Name()), slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, types.ErrorResp{Error: "solve_failed"})
		return
	}
	c.JSON(http.StatusOK, types.AnswerResp{Answer: answer, Provider: h.Solver.Name()})
}
