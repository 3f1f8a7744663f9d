package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fruitsense/backend/internal/fanout"
	"github.com/fruitsense/backend/internal/models"
	"github.com/fruitsense/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	tokenRepository        repositories.TokenRepository
	userRepository         repositories.UserRepository
	dispatcher             *fanout.Dispatcher
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(
	notifRepo repositories.NotificationRepository,
	tokenRepo repositories.TokenRepository,
	userRepo repositories.UserRepository,
	dispatcher *fanout.Dispatcher,
) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		tokenRepository:        tokenRepo,
		userRepository:         userRepo,
		dispatcher:             dispatcher,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.POST("/notifications/mark-read", h.MarkRead)
	g.DELETE("/notifications/:id", h.DeleteNotification)
	g.POST("/notifications/push-token", h.RegisterPushToken)
	g.DELETE("/notifications/push-token", h.UnregisterPushToken)
	g.PUT("/notifications/settings", h.UpdateSettings)
	g.POST("/notifications/announce", h.Announce)
}

// GetNotifications returns paginated notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	notifications, total, unread, err := h.notificationRepository.ListByRecipient(c.Request().Context(), currentUserID, page, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"notifications": notifications,
		"total":         total,
		"unread":        unread,
		"page":          page,
	})
}

// GetUnreadCount returns the authoritative unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	count, err := h.notificationRepository.UnreadCount(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"count": count})
}

// MarkRead marks the given notifications as read. An empty or omitted ids
// list marks all unread notifications as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.MarkReadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	affected, err := h.notificationRepository.MarkRead(c.Request().Context(), currentUserID, req.IDs)
	if err != nil {
		if errors.Is(err, repositories.ErrInvalidNotificationID) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"affected": affected})
}

// DeleteNotification deletes one of the caller's notifications. A missing or
// non-owned id is treated as success so existence of other users' records is
// never leaked.
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	err := h.notificationRepository.Delete(c.Request().Context(), currentUserID, c.Param("id"))
	if err != nil && !errors.Is(err, repositories.ErrInvalidNotificationID) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

// RegisterPushToken adds a push token to the caller's device token set
func (h *NotificationHandler) RegisterPushToken(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.PushTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.tokenRepository.RegisterToken(c.Request().Context(), currentUserID, req.Token); err != nil {
		if errors.Is(err, repositories.ErrInvalidToken) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid push token format")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"registered": true})
}

// UnregisterPushToken removes a push token from the caller's device token set
func (h *NotificationHandler) UnregisterPushToken(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.PushTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.tokenRepository.UnregisterToken(c.Request().Context(), currentUserID, req.Token); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"unregistered": true})
}

// UpdateSettings merges the caller's per-category notification flags
func (h *NotificationHandler) UpdateSettings(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	if err := h.tokenRepository.UpdateSettings(c.Request().Context(), currentUserID, &req); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"updated": true})
}

// Announce broadcasts a system notification to all active accounts. The
// response is sent before fan-out completes; fan-out errors never reach the
// caller.
func (h *NotificationHandler) Announce(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	user, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authenticated user not found in database")
	}
	if !user.IsAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "Admin privileges required")
	}

	var req models.AnnounceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.dispatcher.DispatchDetached(fanout.SystemEvent(currentUserID, req.Title, req.Body))

	return c.JSON(http.StatusAccepted, echo.Map{"accepted": true})
}
