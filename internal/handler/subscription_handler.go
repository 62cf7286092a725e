package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type subscriptionService interface {
	Status(ctx context.Context, branchID string) (*models.SubscriptionStatus, error)
}

// SubscriptionHandler reports branch subscription status.
type SubscriptionHandler struct {
	service subscriptionService
}

// NewSubscriptionHandler constructs SubscriptionHandler.
func NewSubscriptionHandler(svc subscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: svc}
}

// Status godoc
// @Summary Branch subscription status
// @Tags Subscription
// @Produce json
// @Param id path string true "Branch ID"
// @Success 200 {object} response.Envelope
// @Router /subscription/branches/{id} [get]
func (h *SubscriptionHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
