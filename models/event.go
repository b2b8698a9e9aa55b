package models

import (
	"time"
)

// Event represents a POAP event (matches database schema).
// Signer is the address whose signature authorizes claims for this event;
// it stays NULL until the event is activated for claiming.
type Event struct {
	ID          int64   `json:"id" db:"id"`
	FancyID     string  `json:"fancy_id" db:"fancy_id"`
	Name        string  `json:"name" db:"name"`
	Description string  `json:"description" db:"description"`
	City        string  `json:"city" db:"city"`
	Country     string  `json:"country" db:"country"`
	StartDate   string  `json:"start_date" db:"start_date"`
	EndDate     string  `json:"end_date" db:"end_date"`
	EventURL    string  `json:"event_url" db:"event_url"`
	ImageURL    string  `json:"image_url" db:"image_url"`
	Year        int     `json:"year" db:"year"`
	Signer      *string `json:"signer" db:"signer"`
	SignerIP    *string `json:"signer_ip" db:"signer_ip"`
}

// UpdateEventRequest updates the claim-signer assignment and display URLs
// of an existing event. Privileged operation.
type UpdateEventRequest struct {
	Signer   *string `json:"signer"`
	SignerIP *string `json:"signer_ip"`
	EventURL string  `json:"event_url"`
	ImageURL string  `json:"image_url"`
}

// TokenMetadata is the ERC-721 style metadata document served for a token.
// Built purely from an Event; same event always yields identical output.
type TokenMetadata struct {
	Description string              `json:"description"`
	ExternalURL string              `json:"external_url"`
	HomeURL     string              `json:"home_url"`
	ImageURL    string              `json:"image_url"`
	Name        string              `json:"name"`
	Year        int                 `json:"year"`
	Tags        []string            `json:"tags"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

// MetadataAttribute is a single trait entry in a TokenMetadata document.
type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Token is a minted attendance token as recorded in the database.
type Token struct {
	ID       int64     `json:"id" db:"id"`
	EventID  int64     `json:"event_id" db:"event_id"`
	Owner    string    `json:"owner" db:"owner"`
	TxHash   string    `json:"tx_hash" db:"tx_hash"`
	MintedAt time.Time `json:"minted_at" db:"minted_at"`
}

// TokenWithEvent joins a token with its event for lookup responses.
type TokenWithEvent struct {
	Token
	Event Event `json:"event"`
}
