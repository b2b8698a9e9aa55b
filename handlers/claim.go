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

// ClaimRedeemer is the claim redemption operation. Implemented by
// poap.Service.
type ClaimRedeemer interface {
	Redeem(ctx context.Context, claim models.Claim, event models.Event) (models.MintOutcome, error)
}

// BatchMinter is the batch mint operation. Implemented by poap.Minter.
type BatchMinter interface {
	MintBatch(ctx context.Context, eventID int64, recipients []string) []models.MintOutcome
}

type ClaimHandler struct {
	events  EventStore
	service ClaimRedeemer
	minter  BatchMinter
}

func NewClaimHandler(events EventStore, service ClaimRedeemer, minter BatchMinter) *ClaimHandler {
	return &ClaimHandler{
		events:  events,
		service: service,
		minter:  minter,
	}
}

// Claim redeems a signed claim, minting one token to the claimer.
//
// Every authorization failure collapses to a generic "Invalid Claim" so
// the response does not reveal which check rejected it.
func (h *ClaimHandler) Claim(c *gin.Context) {
	var claim models.Claim
	if err := c.ShouldBindJSON(&claim); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Claim"})
		return
	}

	event, err := h.events.GetEventByID(c, claim.EventID)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			// Unknown event is indistinguishable from a bad signature.
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Claim"})
			return
		}
		slog.Error("failed to load event for claim", "claim_id", claim.ClaimID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	outcome, err := h.service.Redeem(c, claim, *event)
	if err != nil {
		if errors.Is(err, errs.LedgerPending) {
			// The claim is consumed and the mint is on its way; it just
			// did not confirm inside the request window.
			slog.Info("claim pending confirmation", "claim_id", claim.ClaimID, "tx", outcome.TxRef)
			c.JSON(http.StatusAccepted, gin.H{"status": "pending", "tx": outcome.TxRef})
			return
		}
		status, body := claimErrorResponse(err)
		slog.Info("claim rejected", "claim_id", claim.ClaimID, "event_id", claim.EventID, "err", err)
		c.JSON(status, body)
		return
	}

	c.Status(http.StatusNoContent)
}

// claimErrorResponse maps a redemption error to its transport response.
// The five authorization failure kinds all produce the same body.
func claimErrorResponse(err error) (int, gin.H) {
	switch {
	case errors.Is(err, errs.LedgerTransient):
		return http.StatusServiceUnavailable, gin.H{"error": "Ledger unavailable"}
	case errors.Is(err, errs.LedgerPermanent):
		return http.StatusUnprocessableEntity, gin.H{"error": "Mint rejected"}
	case errors.Is(err, errs.Validation),
		errors.Is(err, errs.EventNotActive),
		errors.Is(err, errs.AlreadyRedeemed),
		errors.Is(err, errs.InvalidProof),
		errors.Is(err, errs.InvalidClaimerSignature),
		errors.Is(err, errs.MalformedSignature):
		return http.StatusBadRequest, gin.H{"error": "Invalid Claim"}
	default:
		return http.StatusInternalServerError, gin.H{"error": "Internal error"}
	}
}

// MintBatch mints one token per address for an event. Privileged.
// Failures are per-address and never abort siblings; when any address
// fails the full outcome list is returned so the caller can see which.
func (h *ClaimHandler) MintBatch(c *gin.Context) {
	var req models.MintBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.events.GetEventByID(c, req.EventID); err != nil {
		if errors.Is(err, errs.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		slog.Error("failed to load event for batch mint", "event_id", req.EventID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	outcomes := h.minter.MintBatch(c, req.EventID, req.Addresses)

	failed := 0
	pending := 0
	transient := false
	for _, outcome := range outcomes {
		switch {
		case outcome.Success:
		case outcome.ErrorKind == string(errs.LedgerPending):
			pending++
		default:
			failed++
			if outcome.ErrorKind == string(errs.LedgerTransient) {
				transient = true
			}
		}
	}

	slog.Info("batch mint finished",
		"event_id", req.EventID, "total", len(outcomes), "failed", failed, "pending", pending)

	switch {
	case failed == 0 && pending == 0:
		c.Status(http.StatusNoContent)
	case failed == 0:
		c.JSON(http.StatusAccepted, gin.H{"outcomes": outcomes})
	case transient:
		c.JSON(http.StatusBadGateway, gin.H{"outcomes": outcomes})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"outcomes": outcomes})
	}
}
