package poap

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"poap-backend/errs"
	"poap-backend/models"
)

// Ledger submits a mint transaction and blocks until it is confirmed or
// fails. Errors carry errs.LedgerTransient, errs.LedgerPermanent or
// errs.LedgerPending so the orchestrator can decide whether to retry;
// a pending error comes with the broadcast transaction's hash.
type Ledger interface {
	Mint(ctx context.Context, eventID int64, recipient string) (txHash string, err error)
}

// TokenRecorder durably records a successful mint so later duplicate
// requests can be answered from the database instead of re-submitted.
type TokenRecorder interface {
	InsertToken(ctx context.Context, eventID int64, owner string, txHash string) error
}

// Minter drives single and batch mint operations against the ledger.
//
// Batch submissions come from one signing account, so nonce assignment in
// the ledger client must stay monotonic; the worker limit keeps in-flight
// submissions small enough that ordering holds while confirmations still
// overlap.
type Minter struct {
	ledger  Ledger
	tokens  TokenRecorder
	retries int
	backoff time.Duration
	timeout time.Duration
	workers int
}

func NewMinter(ledger Ledger, tokens TokenRecorder) *Minter {
	return &Minter{
		ledger:  ledger,
		tokens:  tokens,
		retries: 3,
		backoff: 500 * time.Millisecond,
		timeout: 30 * time.Second,
		workers: 2,
	}
}

// MintSingle submits one mint and returns its outcome. Transient ledger
// failures are retried with exponential backoff up to the retry budget;
// permanent failures surface immediately. A broadcast that times out
// waiting for confirmation is never retried: the outcome carries the
// pending tx hash so the caller can hold the claim against it.
func (m *Minter) MintSingle(ctx context.Context, eventID int64, recipient string) models.MintOutcome {
	if !models.IsAddress(recipient) {
		return models.MintOutcome{Address: recipient, ErrorKind: string(errs.Validation)}
	}

	for attempt := 0; attempt < m.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(m.backoff << (attempt - 1)):
			case <-ctx.Done():
				return models.MintOutcome{Address: recipient, ErrorKind: string(errs.LedgerTransient)}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, m.timeout)
		txHash, err := m.ledger.Mint(attemptCtx, eventID, recipient)
		cancel()

		if err == nil {
			if insertErr := m.tokens.InsertToken(ctx, eventID, recipient, txHash); insertErr != nil {
				// The mint is on the ledger; a failed record write must not
				// turn the outcome into a failure that triggers a re-mint.
				slog.Warn("mint confirmed but token record failed",
					"event_id", eventID, "recipient", recipient, "tx", txHash, "err", insertErr)
			}
			return models.MintOutcome{Address: recipient, Success: true, TxRef: txHash}
		}
		if errors.Is(err, errs.LedgerPending) {
			// The transaction reached the node but did not confirm in
			// time. Retrying would broadcast a second mint on a fresh
			// nonce, so surface the pending hash and stop.
			slog.Warn("mint broadcast but unconfirmed",
				"event_id", eventID, "recipient", recipient, "tx", txHash, "err", err)
			return models.MintOutcome{Address: recipient, TxRef: txHash, ErrorKind: string(errs.LedgerPending)}
		}
		if !errors.Is(err, errs.LedgerTransient) {
			return models.MintOutcome{Address: recipient, ErrorKind: string(errs.LedgerPermanent)}
		}
		slog.Warn("transient mint failure, will retry",
			"event_id", eventID, "recipient", recipient, "attempt", attempt+1, "err", err)
	}

	return models.MintOutcome{Address: recipient, ErrorKind: string(errs.LedgerTransient)}
}

// MintBatch mints one token per recipient and returns one outcome per
// recipient in input order. A failure for one address never aborts the
// others. In-flight submissions are bounded by the worker limit.
func (m *Minter) MintBatch(ctx context.Context, eventID int64, recipients []string) []models.MintOutcome {
	outcomes := make([]models.MintOutcome, len(recipients))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, recipient := range recipients {
		i, recipient := i, recipient
		g.Go(func() error {
			outcomes[i] = m.MintSingle(gctx, eventID, recipient)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
