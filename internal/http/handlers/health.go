package handlers

import (
	"net/http"

	"github.com/steveyiyo/tutor-voice/internal/core/relay"
	"github.com/steveyiyo/tutor-voice/pkg/types"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	Svc *relay.Service
}

func NewHealthHandler(svc *relay.Service) *HealthHandler { return &HealthHandler{Svc: svc} }

func (h *HealthHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthResp{Status: "ok", ActiveCredentials: h.Svc.Active()})
}
