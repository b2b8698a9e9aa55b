package errs

// ErrorKind identifies a kind of internal error.
// Fully supports errors.Is matching through the error chain.
type ErrorKind string

const (
	// Validation is returned when a request field is malformed or missing.
	Validation = ErrorKind("validation error")

	// NotFound is returned when a requested event or token does not exist.
	NotFound = ErrorKind("not found")

	// Unauthorized is returned when a privileged operation lacks a valid credential.
	Unauthorized = ErrorKind("unauthorized")

	// EventNotActive is returned when an event has no signer configured
	// and therefore accepts no claims.
	EventNotActive = ErrorKind("event not active")

	// AlreadyRedeemed is returned when a claim id has already been consumed.
	AlreadyRedeemed = ErrorKind("claim already redeemed")

	// InvalidProof is returned when the event-signer proof does not recover
	// to the event's signer address.
	InvalidProof = ErrorKind("invalid proof")

	// InvalidClaimerSignature is returned when the claimer signature does
	// not recover to the claimer address.
	InvalidClaimerSignature = ErrorKind("invalid claimer signature")

	// MalformedSignature is returned when a signature does not decode to
	// recoverable (r, s, v) components.
	MalformedSignature = ErrorKind("malformed signature")

	// LedgerTransient marks a ledger submission failure worth retrying
	// (network timeout, node busy).
	LedgerTransient = ErrorKind("transient ledger error")

	// LedgerPermanent marks a ledger submission failure that no retry can
	// fix (malformed address, contract-level rejection).
	LedgerPermanent = ErrorKind("permanent ledger error")

	// LedgerPending marks a transaction that was accepted by the node but
	// not confirmed before the deadline. The mint may still complete, so
	// it must never be retried with a fresh transaction.
	LedgerPending = ErrorKind("mint pending confirmation")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
