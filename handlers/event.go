package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"poap-backend/errs"
	"poap-backend/models"
)

// EventStore is the event persistence surface the handlers depend on.
// Implemented by store.Store; tests substitute a fake.
type EventStore interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	GetEventByFancyID(ctx context.Context, fancyID string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	UpdateEvent(ctx context.Context, fancyID string, req models.UpdateEventRequest) error
}

type EventHandler struct {
	store EventStore
}

func NewEventHandler(store EventStore) *EventHandler {
	return &EventHandler{store: store}
}

func (h *EventHandler) GetEvents(c *gin.Context) {
	events, err := h.store.ListEvents(c)
	if err != nil {
		slog.Error("failed to list events", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	fancyID := c.Param("fancyid")

	event, err := h.store.GetEventByFancyID(c, fancyID)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		slog.Error("failed to get event", "fancy_id", fancyID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, event)
}

// UpdateEvent assigns or clears the claim signer for an event and updates
// its display URLs. Privileged.
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	fancyID := c.Param("fancyid")

	var req models.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Signer != nil && !models.IsAddress(*req.Signer) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signer address"})
		return
	}

	if err := h.store.UpdateEvent(c, fancyID, req); err != nil {
		if errors.Is(err, errs.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		slog.Error("failed to update event", "fancy_id", fancyID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("event updated", "fancy_id", fancyID, "signer", req.Signer)
	c.Status(http.StatusNoContent)
}
