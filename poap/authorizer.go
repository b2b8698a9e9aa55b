package poap

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"poap-backend/errs"
	"poap-backend/models"
)

// RedemptionGate is the atomic check-and-set over a claim id's redemption
// state. Reserve must be race-safe: of two concurrent calls for the same
// claim id exactly one succeeds, the other gets errs.AlreadyRedeemed.
// Reservations for different claim ids never contend.
type RedemptionGate interface {
	IsRedeemed(ctx context.Context, claimID string) (bool, error)
	Reserve(ctx context.Context, claimID string, eventID int64) error
	Finalize(ctx context.Context, claimID string, txRef string) error
	Release(ctx context.Context, claimID string) error
}

// Authorizer validates a claim's structure and signatures against an event
// record and enforces at-most-once redemption.
type Authorizer struct {
	gate RedemptionGate
}

func NewAuthorizer(gate RedemptionGate) *Authorizer {
	return &Authorizer{gate: gate}
}

// Authorize runs the redemption checks in order, short-circuiting on the
// first failure, and reserves the claim id on success. After a nil return
// the caller holds the reservation and must either Finalize it with the
// mint tx hash or Release it if the mint fails.
//
// Check order: structure, event active, not yet redeemed, proof recovers
// to the event signer, consent signature recovers to the claimer.
func (a *Authorizer) Authorize(ctx context.Context, claim models.Claim, event models.Event) error {
	if claim.EventID != event.ID {
		return errors.Wrapf(errs.Validation, "claim event id %d does not match event %d", claim.EventID, event.ID)
	}
	if !models.IsAddress(claim.Claimer) {
		return errors.Wrap(errs.Validation, "malformed claimer address")
	}
	if !models.IsSignature(claim.Proof) {
		return errors.Wrap(errs.Validation, "malformed proof")
	}
	if !models.IsSignature(claim.ClaimerSignature) {
		return errors.Wrap(errs.Validation, "malformed claimer signature")
	}

	if event.Signer == nil || *event.Signer == "" {
		return errors.Wrapf(errs.EventNotActive, "event %d has no signer", event.ID)
	}

	redeemed, err := a.gate.IsRedeemed(ctx, claim.ClaimID)
	if err != nil {
		return errors.Wrap(err, "check redemption state")
	}
	if redeemed {
		return errors.Wrapf(errs.AlreadyRedeemed, "claim %q", claim.ClaimID)
	}

	proofSigner, err := RecoverSigner(ProofMessage(claim.ClaimID, claim.EventID, claim.Claimer), claim.Proof)
	if err != nil {
		return errors.Wrap(errs.InvalidProof, err.Error())
	}
	if proofSigner != common.HexToAddress(*event.Signer) {
		return errors.Wrapf(errs.InvalidProof, "proof signed by %s", strings.ToLower(proofSigner.Hex()))
	}

	consentSigner, err := RecoverSigner(ConsentMessage(claim.ClaimID), claim.ClaimerSignature)
	if err != nil {
		return errors.Wrap(errs.InvalidClaimerSignature, err.Error())
	}
	if consentSigner != common.HexToAddress(claim.Claimer) {
		return errors.Wrapf(errs.InvalidClaimerSignature, "consent signed by %s", strings.ToLower(consentSigner.Hex()))
	}

	// The reserve is the authoritative not-yet-redeemed check: the read
	// above only orders the error for sequential callers, the insert is
	// what makes concurrent duplicates lose.
	if err := a.gate.Reserve(ctx, claim.ClaimID, claim.EventID); err != nil {
		return err
	}
	return nil
}
