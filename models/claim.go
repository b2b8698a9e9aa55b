package models

import (
	"regexp"
	"time"
)

// Address and Signature wire patterns, enforced at the boundary before any
// cryptographic operation is attempted.
var (
	addressPattern   = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	signaturePattern = regexp.MustCompile(`^0x[0-9a-fA-F]{130}$`)
)

// IsAddress reports whether s is a canonical 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// IsSignature reports whether s is a canonical 0x-prefixed 65-byte hex signature.
func IsSignature(s string) bool {
	return signaturePattern.MatchString(s)
}

// Claim is a twice-signed assertion that Claimer is authorized to mint one
// token for the event. Proof is produced by the event's signer over
// (claim_id, event_id, claimer); ClaimerSignature is produced by the claimer
// over claim_id and proves control of the address.
type Claim struct {
	ClaimID          string `json:"claim_id" binding:"required"`
	EventID          int64  `json:"event_id" binding:"required,min=1"`
	Proof            string `json:"proof" binding:"required"`
	Claimer          string `json:"claimer" binding:"required"`
	ClaimerSignature string `json:"claimer_signature" binding:"required"`
}

// RedemptionRecord marks a claim id as consumed. Created exactly once per
// claim; its existence is the idempotency gate for redemption.
type RedemptionRecord struct {
	ClaimID    string    `json:"claim_id" db:"claim_id"`
	EventID    int64     `json:"event_id" db:"event_id"`
	RedeemedAt time.Time `json:"redeemed_at" db:"redeemed_at"`
	MintTxRef  string    `json:"mint_tx_ref" db:"mint_tx_ref"`
}

// MintOutcome is the per-address result of a batch mint. ErrorKind is empty
// on success; TxRef is empty on failure.
type MintOutcome struct {
	Address   string `json:"address"`
	Success   bool   `json:"success"`
	TxRef     string `json:"tx_ref,omitempty"`
	ErrorKind string `json:"error,omitempty"`
}

// MintBatchRequest mints one token per address for an event. Privileged.
type MintBatchRequest struct {
	EventID   int64    `json:"eventId" binding:"required,min=1"`
	Addresses []string `json:"addresses" binding:"required,min=1"`
}
