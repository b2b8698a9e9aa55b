package poap

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"poap-backend/errs"
	"poap-backend/models"
)

// Service composes the authorizer and the mint orchestrator into the
// claim redemption operation.
type Service struct {
	authorizer *Authorizer
	minter     *Minter
	gate       RedemptionGate
}

func NewService(authorizer *Authorizer, minter *Minter, gate RedemptionGate) *Service {
	return &Service{
		authorizer: authorizer,
		minter:     minter,
		gate:       gate,
	}
}

// Redeem authorizes the claim against its event and, when authorized,
// mints one token to the claimer.
//
// The redemption record is reserved before the ledger is touched and
// finalized with the tx hash after confirmation. If the mint fails
// before anything reaches the node the reservation is released so the
// claim can be retried; if a broadcast transaction merely missed its
// confirmation window the reservation is instead finalized with the
// pending hash. Only the reservation holder ever reaches the ledger, so
// a claim id can never mint twice.
func (s *Service) Redeem(ctx context.Context, claim models.Claim, event models.Event) (models.MintOutcome, error) {
	if err := s.authorizer.Authorize(ctx, claim, event); err != nil {
		return models.MintOutcome{Address: claim.Claimer}, err
	}

	outcome := s.minter.MintSingle(ctx, claim.EventID, claim.Claimer)
	if !outcome.Success {
		if outcome.ErrorKind == string(errs.LedgerPending) && outcome.TxRef != "" {
			// The transaction is on the node and may still mine. Releasing
			// here would let a client retry mint a second token on top of
			// it, so the claim stays consumed, held against the pending tx.
			if err := s.gate.Finalize(ctx, claim.ClaimID, outcome.TxRef); err != nil {
				slog.Error("failed to finalize pending redemption",
					"claim_id", claim.ClaimID, "tx", outcome.TxRef, "err", err)
			}
			return outcome, errors.Wrapf(errs.LedgerPending, "mint for claim %q in tx %s", claim.ClaimID, outcome.TxRef)
		}
		if err := s.gate.Release(ctx, claim.ClaimID); err != nil {
			slog.Error("failed to release redemption after mint failure",
				"claim_id", claim.ClaimID, "err", err)
		}
		return outcome, errors.Wrapf(errs.ErrorKind(outcome.ErrorKind), "mint for claim %q", claim.ClaimID)
	}

	if err := s.gate.Finalize(ctx, claim.ClaimID, outcome.TxRef); err != nil {
		// The token is minted and recorded; a finalize failure only loses
		// the tx reference on the redemption row.
		slog.Error("failed to finalize redemption",
			"claim_id", claim.ClaimID, "tx", outcome.TxRef, "err", err)
	}

	slog.Info("claim redeemed",
		"claim_id", claim.ClaimID, "event_id", claim.EventID, "claimer", claim.Claimer, "tx", outcome.TxRef)
	return outcome, nil
}
