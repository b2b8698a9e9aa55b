package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"poap-backend/errs"
	"poap-backend/models"
	"poap-backend/poap"
)

// TokenStore is the token persistence surface the handlers depend on.
type TokenStore interface {
	GetToken(ctx context.Context, id int64) (*models.TokenWithEvent, error)
	TokensByOwner(ctx context.Context, owner string) ([]models.TokenWithEvent, error)
}

type TokenHandler struct {
	events  EventStore
	tokens  TokenStore
	baseURL string
}

// NewTokenHandler creates a handler serving token lookups and metadata.
// baseURL is the canonical public URL of this service, used for the
// external/home links inside metadata documents.
func NewTokenHandler(events EventStore, tokens TokenStore, baseURL string) *TokenHandler {
	return &TokenHandler{
		events:  events,
		tokens:  tokens,
		baseURL: baseURL,
	}
}

// GetMetadata serves the metadata document for a token of an event.
func (h *TokenHandler) GetMetadata(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}
	tokenID, err := strconv.ParseInt(c.Param("tokenId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token ID"})
		return
	}

	event, err := h.events.GetEventByID(c, eventID)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		slog.Error("failed to get event for metadata", "event_id", eventID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	canonicalURL := fmt.Sprintf("%s/metadata/%d/%d", h.baseURL, eventID, tokenID)
	c.JSON(http.StatusOK, poap.BuildMetadata(canonicalURL, *event))
}

// Scan lists the tokens owned by an address.
func (h *TokenHandler) Scan(c *gin.Context) {
	address := c.Param("address")
	if !models.IsAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}

	tokens, err := h.tokens.TokensByOwner(c, address)
	if err != nil {
		slog.Error("failed to scan address", "address", address, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (h *TokenHandler) GetToken(c *gin.Context) {
	tokenID, err := strconv.ParseInt(c.Param("tokenId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token ID"})
		return
	}

	token, err := h.tokens.GetToken(c, tokenID)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		slog.Error("failed to get token", "token_id", tokenID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, token)
}
