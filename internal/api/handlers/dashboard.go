package handlers

import (
	"net/http"

	"github.com/gatherly-dev/gatherly/internal/service"
	"github.com/gin-gonic/gin"
)

// DashboardHandler serves the organizer and admin dashboard.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// DashboardResponse combines the totals with one listing
type DashboardResponse struct {
	Counts  *service.Counts  `json:"counts"`
	Listing *service.Listing `json:"listing"`
}

// GetDashboard godoc
// @Summary Dashboard counts and a filtered listing
// @Tags dashboard
// @Security BearerAuth
// @Produce json
// @Param type query string false "all, upcoming, past or categories" default(all)
// @Success 200 {object} DashboardResponse
// @Failure 400 {object} ErrorResponse
// @Router /dashboard [get]
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	counts, err := h.dashboard.Counts(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	listing, err := h.dashboard.FilteredEvents(c.Request.Context(), c.DefaultQuery("type", service.ListAll))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, DashboardResponse{Counts: counts, Listing: listing})
}
