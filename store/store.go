package store

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poap-backend/errs"
	"poap-backend/models"
)

// Store is the pgx-backed persistence layer for events, redemptions and
// minted tokens.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const eventColumns = `id, fancy_id, name, description, city, country, start_date, end_date, event_url, image_url, year, signer, signer_ip`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var event models.Event
	err := row.Scan(
		&event.ID,
		&event.FancyID,
		&event.Name,
		&event.Description,
		&event.City,
		&event.Country,
		&event.StartDate,
		&event.EndDate,
		&event.EventURL,
		&event.ImageURL,
		&event.Year,
		&event.Signer,
		&event.SignerIP,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(errs.NotFound, "event")
		}
		return nil, errors.Wrap(err, "scan event")
	}
	return &event, nil
}

func (s *Store) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	return scanEvent(s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

func (s *Store) GetEventByFancyID(ctx context.Context, fancyID string) (*models.Event, error) {
	return scanEvent(s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE fancy_id = $1`, fancyID))
}

func (s *Store) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.db.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// UpdateEvent applies the privileged signer/URL update to the event with
// the given fancy id.
func (s *Store) UpdateEvent(ctx context.Context, fancyID string, req models.UpdateEventRequest) error {
	query := `
		UPDATE events
		SET signer = $2,
		    signer_ip = $3,
		    event_url = COALESCE(NULLIF($4, ''), event_url),
		    image_url = COALESCE(NULLIF($5, ''), image_url)
		WHERE fancy_id = $1
	`

	var signer *string
	if req.Signer != nil {
		lowered := strings.ToLower(*req.Signer)
		signer = &lowered
	}

	tag, err := s.db.Exec(ctx, query, fancyID, signer, req.SignerIP, req.EventURL, req.ImageURL)
	if err != nil {
		return errors.Wrap(err, "update event")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(errs.NotFound, "event")
	}
	return nil
}

// IsRedeemed reports whether a redemption record exists for the claim id.
func (s *Store) IsRedeemed(ctx context.Context, claimID string) (bool, error) {
	var redeemed bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM redemptions WHERE claim_id = $1)`, claimID).Scan(&redeemed)
	if err != nil {
		return false, errors.Wrap(err, "check redemption")
	}
	return redeemed, nil
}

// Reserve creates the redemption record for a claim id. The unique
// constraint on claim_id makes this the atomic check-and-set: of two
// concurrent reservations exactly one inserts, the other gets
// errs.AlreadyRedeemed.
func (s *Store) Reserve(ctx context.Context, claimID string, eventID int64) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO redemptions (claim_id, event_id, redeemed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (claim_id) DO NOTHING
	`, claimID, eventID)
	if err != nil {
		return errors.Wrap(err, "reserve redemption")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errs.AlreadyRedeemed, "claim %q", claimID)
	}
	return nil
}

// Finalize stores the mint transaction reference on a reserved redemption.
func (s *Store) Finalize(ctx context.Context, claimID string, txRef string) error {
	_, err := s.db.Exec(ctx, `UPDATE redemptions SET mint_tx_ref = $2 WHERE claim_id = $1`, claimID, txRef)
	return errors.Wrap(err, "finalize redemption")
}

// Release drops a provisional reservation after a failed mint so the claim
// can be retried. Finalized redemptions (with a tx reference) are never
// released.
func (s *Store) Release(ctx context.Context, claimID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM redemptions WHERE claim_id = $1 AND mint_tx_ref IS NULL`, claimID)
	return errors.Wrap(err, "release redemption")
}

// InsertToken records a minted token.
func (s *Store) InsertToken(ctx context.Context, eventID int64, owner string, txHash string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tokens (event_id, owner, tx_hash, minted_at)
		VALUES ($1, $2, $3, now())
	`, eventID, strings.ToLower(owner), txHash)
	return errors.Wrap(err, "insert token")
}

const tokenColumns = `t.id, t.event_id, t.owner, t.tx_hash, t.minted_at, ` +
	`e.id, e.fancy_id, e.name, e.description, e.city, e.country, e.start_date, e.end_date, e.event_url, e.image_url, e.year, e.signer, e.signer_ip`

func scanTokenWithEvent(row pgx.Row) (*models.TokenWithEvent, error) {
	var token models.TokenWithEvent
	err := row.Scan(
		&token.ID,
		&token.EventID,
		&token.Owner,
		&token.TxHash,
		&token.MintedAt,
		&token.Event.ID,
		&token.Event.FancyID,
		&token.Event.Name,
		&token.Event.Description,
		&token.Event.City,
		&token.Event.Country,
		&token.Event.StartDate,
		&token.Event.EndDate,
		&token.Event.EventURL,
		&token.Event.ImageURL,
		&token.Event.Year,
		&token.Event.Signer,
		&token.Event.SignerIP,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(errs.NotFound, "token")
		}
		return nil, errors.Wrap(err, "scan token")
	}
	return &token, nil
}

func (s *Store) GetToken(ctx context.Context, id int64) (*models.TokenWithEvent, error) {
	return scanTokenWithEvent(s.db.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens t
		JOIN events e ON t.event_id = e.id
		WHERE t.id = $1
	`, id))
}

func (s *Store) TokensByOwner(ctx context.Context, owner string) ([]models.TokenWithEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens t
		JOIN events e ON t.event_id = e.id
		WHERE t.owner = $1
		ORDER BY t.minted_at DESC
	`, strings.ToLower(owner))
	if err != nil {
		return nil, errors.Wrap(err, "tokens by owner")
	}
	defer rows.Close()

	tokens := make([]models.TokenWithEvent, 0)
	for rows.Next() {
		token, err := scanTokenWithEvent(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, rows.Err()
}
