package handlers

import (
	"net/http"
	"strconv"

	"github.com/gatherly-dev/gatherly/internal/service"
	"github.com/gin-gonic/gin"
)

// EventHandler serves the event catalog and RSVP endpoints.
type EventHandler struct {
	catalog *service.CatalogService
	rsvps   *service.RSVPService
}

func NewEventHandler(catalog *service.CatalogService, rsvps *service.RSVPService) *EventHandler {
	return &EventHandler{catalog: catalog, rsvps: rsvps}
}

// EventRequest is the body for creating or replacing an event
type EventRequest struct {
	Name        string `json:"name" binding:"required,notblank"`
	Description string `json:"description"`
	Date        string `json:"date" binding:"required"`
	Time        string `json:"time" binding:"required"`
	Location    string `json:"location" binding:"required,notblank"`
	CategoryID  uint   `json:"category_id" binding:"required"`
	Asset       string `json:"asset"`
}

func (r EventRequest) input() service.EventInput {
	return service.EventInput{
		Name:        r.Name,
		Description: r.Description,
		Date:        r.Date,
		Time:        r.Time,
		Location:    r.Location,
		CategoryID:  r.CategoryID,
		AssetPath:   r.Asset,
	}
}

// ListEvents godoc
// @Summary List events
// @Description Filters compose: search matches name or location, dates are inclusive
// @Tags events
// @Produce json
// @Param search query string false "Name or location substring"
// @Param category query int false "Category ID"
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD"
// @Success 200 {array} models.Event
// @Failure 400 {object} ErrorResponse
// @Router /events [get]
func (h *EventHandler) ListEvents(c *gin.Context) {
	filter := service.EventFilter{
		Search:    c.Query("search"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}
	if raw := c.Query("category"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid category"})
			return
		}
		filter.CategoryID = uint(id)
	}

	events, err := h.catalog.ListEvents(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// Home godoc
// @Summary Latest events for the home page
// @Tags events
// @Produce json
// @Param limit query int false "Number of events" default(9)
// @Success 200 {array} models.Event
// @Router /home [get]
func (h *EventHandler) Home(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "9"))
	events, err := h.catalog.Home(c.Request.Context(), limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetEvent godoc
// @Summary Get an event
// @Tags events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} models.Event
// @Failure 404 {object} ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetEvent(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	event, err := h.catalog.GetEvent(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// CreateEvent godoc
// @Summary Create an event
// @Tags events
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param event body EventRequest true "Event"
// @Success 201 {object} models.Event
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /events [post]
func (h *EventHandler) CreateEvent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	event, err := h.catalog.CreateEvent(c.Request.Context(), user.ID, req.input())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// UpdateEvent godoc
// @Summary Replace an event
// @Tags events
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param event body EventRequest true "Event"
// @Success 200 {object} models.Event
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /events/{id} [put]
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	event, err := h.catalog.UpdateEvent(c.Request.Context(), user.ID, id, req.input())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// DeleteEvent godoc
// @Summary Delete an event and its RSVPs
// @Tags events
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /events/{id} [delete]
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteEvent(c.Request.Context(), user.ID, id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListParticipants godoc
// @Summary List the users attending an event
// @Tags events
// @Security BearerAuth
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {array} models.User
// @Failure 404 {object} ErrorResponse
// @Router /events/{id}/participants [get]
func (h *EventHandler) ListParticipants(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	users, err := h.rsvps.ListParticipants(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// RSVPStatus reports whether the current user has RSVP'd to an event
type RSVPStatus struct {
	EventID uint `json:"event_id"`
	RSVPed  bool `json:"rsvped"`
}

// GetRSVP godoc
// @Summary Check the current user's RSVP for an event
// @Tags rsvp
// @Security BearerAuth
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} RSVPStatus
// @Failure 404 {object} ErrorResponse
// @Router /events/{id}/rsvp [get]
func (h *EventHandler) GetRSVP(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rsvped, err := h.rsvps.IsParticipating(c.Request.Context(), user.ID, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, RSVPStatus{EventID: id, RSVPed: rsvped})
}

// RSVP godoc
// @Summary RSVP to an event
// @Tags rsvp
// @Security BearerAuth
// @Produce json
// @Param id path int true "Event ID"
// @Success 201 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /events/{id}/rsvp [post]
func (h *EventHandler) RSVP(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.rsvps.RSVP(c.Request.Context(), user, id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MessageResponse{Message: "RSVP confirmed"})
}

// CancelRSVP godoc
// @Summary Cancel an RSVP
// @Description Cancelling without an RSVP succeeds and changes nothing
// @Tags rsvp
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /events/{id}/rsvp [delete]
func (h *EventHandler) CancelRSVP(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.rsvps.CancelRSVP(c.Request.Context(), user, id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MyRSVPs godoc
// @Summary Events the current user has RSVP'd to
// @Tags rsvp
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Event
// @Router /me/rsvps [get]
func (h *EventHandler) MyRSVPs(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	events, err := h.rsvps.ListParticipationsOf(c.Request.Context(), user.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
