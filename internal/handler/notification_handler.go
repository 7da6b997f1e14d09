package handler

import (
	"net/http"
	"strconv"

	"solicitudes/internal/middleware"
	"solicitudes/internal/service"
	"solicitudes/pkg/pagination"
	"solicitudes/pkg/response"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	group := router.Group("/api/notifications", auth)
	{
		group.GET("", h.List)
		group.GET("/pending", h.ListPending)
		group.GET("/stats", h.Stats)
		group.GET("/:id", h.Get)
		group.PATCH("/:id/read", h.MarkRead)
		group.POST("/:id/resend", h.Resend)
	}
}

// List returns notifications visible to the caller, filtered and paginated
// @Summary      List notifications
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        kind        query     string  false  "Filter by kind"
// @Param        sent        query     bool    false  "Filter by email delivery state"
// @Param        request_id  query     string  false  "Filter by request"
// @Param        page        query     int     false  "Page number"
// @Param        per_page    query     int     false  "Items per page"
// @Success      200         {object}  response.Response
// @Router       /api/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated"))
		return
	}

	filter := service.NotificationListFilter{
		Kind:      c.Query("kind"),
		RequestID: c.Query("request_id"),
		Page:      pagination.Parse(c),
	}
	if raw, present := c.GetQuery("sent"); present {
		if sent, err := strconv.ParseBool(raw); err == nil {
			filter.Sent = &sent
		}
	}

	items, meta, err := h.notificationService.List(c.Request.Context(), actor, filter)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"items": items,
		"meta":  meta,
	}))
}

// Get returns a single notification by ID
func (h *NotificationHandler) Get(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated"))
		return
	}

	n, err := h.notificationService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, n))
}

// MarkRead marks an in-app notification as read. Safe to repeat.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated"))
		return
	}

	n, err := h.notificationService.MarkRead(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, n))
}

// ListPending returns undelivered email notifications still within the
// retry budget. Admin only.
func (h *NotificationHandler) ListPending(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated"))
		return
	}

	items, err := h.notificationService.ListPending(c.Request.Context(), actor)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// Resend queues a fresh delivery attempt for a notification's email. Admin only.
// @Summary      Resend notification email
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Notification ID"
// @Success      202  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/notifications/{id}/resend [post]
func (h *NotificationHandler) Resend(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated"))
		return
	}

	if err := h.notificationService.Resend(c.Request.Context(), actor, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response.Success(http.StatusAccepted, gin.H{"queued": true}))
}

// Stats returns aggregate notification delivery counts
func (h *NotificationHandler) Stats(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated"))
		return
	}

	stats, err := h.notificationService.Stats(c.Request.Context(), actor)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
