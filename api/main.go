// Package api exposes the in-app notification feed to the UI and hosts the
// ancillary ticket image upload endpoint.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/stagecrew/ticket-notifier/common"
	"github.com/stagecrew/ticket-notifier/model"
)

// Feed describes the notification feed operations the API serves.
type Feed interface {
	ListNotifications(ctx context.Context, userID string, limit uint64) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
	CountUnreadNotificationsForTicket(ctx context.Context, userID, ticketID string) (int64, error)
	PruneNotificationsOlderThan(ctx context.Context, userID string, days int) (int64, error)
}

// defaultListLimit bounds feed listings when the caller doesn't say how many
// entries it wants.
const defaultListLimit = 50

// API is the HTTP server for the feed and upload endpoints.
type API struct {
	router        *gin.Engine
	feed          Feed
	blobs         BlobStore
	serviceToken  string
	retentionDays int
	log           *logrus.Entry
}

// New builds the API. serviceToken guards the upload endpoint; an empty token
// disables uploads entirely rather than leaving them open. retentionDays is
// the prune window used when the caller doesn't specify one.
func New(feed Feed, blobs BlobStore, serviceToken string, retentionDays int, log *logrus.Entry) *API {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if retentionDays < 1 {
		retentionDays = common.DefaultRetentionDays
	}
	a := &API{
		router:        router,
		feed:          feed,
		blobs:         blobs,
		serviceToken:  serviceToken,
		retentionDays: retentionDays,
		log:           log,
	}
	a.setupRoutes()

	return a
}

// setupRoutes registers the API routes.
func (a *API) setupRoutes() {
	users := a.router.Group("/users/:user/notifications")
	{
		users.GET("", a.listNotifications)
		users.GET("/unread-count", a.unreadCount)
		users.POST("/mark-all-read", a.markAllRead)
		users.POST("/prune", a.prune)
	}
	a.router.POST("/notifications/:id/mark-read", a.markRead)
	a.router.POST("/tickets/:ticket/images", a.uploadImage)
}

// Run starts the HTTP server and blocks until it stops.
func (a *API) Run(addr string) error {
	return a.router.Run(addr)
}

// listNotifications returns the user's feed entries, most recent first.
func (a *API) listNotifications(c *gin.Context) {
	limit := uint64(defaultListLimit)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	notifications, err := a.feed.ListNotifications(c.Request.Context(), c.Param("user"), limit)
	if err != nil {
		a.serverError(c, err)
		return
	}
	if notifications == nil {
		notifications = []*model.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// unreadCount returns the user's unread entry count, optionally restricted to
// a single ticket via the ticketId query parameter.
func (a *API) unreadCount(c *gin.Context) {
	var count int64
	var err error

	if ticketID := c.Query("ticketId"); ticketID != "" {
		count, err = a.feed.CountUnreadNotificationsForTicket(c.Request.Context(), c.Param("user"), ticketID)
	} else {
		count, err = a.feed.CountUnreadNotifications(c.Request.Context(), c.Param("user"))
	}
	if err != nil {
		a.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// markRead marks a single feed entry as read. Marking an already-read entry
// succeeds without doing anything.
func (a *API) markRead(c *gin.Context) {
	err := a.feed.MarkNotificationRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		a.serverError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// markAllRead marks every unread entry for the user as read. A repeat call is
// a no-op that reports zero updates.
func (a *API) markAllRead(c *gin.Context) {
	updated, err := a.feed.MarkAllNotificationsRead(c.Request.Context(), c.Param("user"))
	if err != nil {
		a.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// prune removes the user's entries older than the retention window and
// reports how many were removed.
func (a *API) prune(c *gin.Context) {
	days := a.retentionDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid retention window"})
			return
		}
		days = parsed
	}

	removed, err := a.feed.PruneNotificationsOlderThan(c.Request.Context(), c.Param("user"), days)
	if err != nil {
		a.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// serverError logs an error and answers with a generic 500.
func (a *API) serverError(c *gin.Context, err error) {
	a.log.WithError(err).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
