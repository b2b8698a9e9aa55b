package poap

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"poap-backend/errs"
)

// ProofMessage is the canonical message signed by an event's signer to
// authorize a (claimId, eventId, claimer) triple. The claimer address is
// lowercased so wallets that checksum-case addresses produce the same
// bytes as wallets that do not.
//
// This format is a stability contract with claim-producing clients and
// must not change without versioning.
func ProofMessage(claimID string, eventID int64, claimer string) []byte {
	return []byte(fmt.Sprintf("%s %d %s", claimID, eventID, strings.ToLower(claimer)))
}

// ConsentMessage is the canonical message signed by the claimer to prove
// control of their address. Same stability contract as ProofMessage.
func ConsentMessage(claimID string) []byte {
	return []byte(claimID)
}

// RecoverSigner recovers the address that produced signature over message.
// The message is hashed with the Ethereum personal-message prefix
// (accounts.TextHash), so signatures from eth_sign / personal_sign verify
// directly. Pure; no I/O.
//
// Returns errs.MalformedSignature when the signature does not decode to
// recoverable (r, s, v) components. A well-formed signature by the wrong
// key recovers a wrong address without error; callers compare addresses.
func RecoverSigner(message []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, errors.Wrap(errs.MalformedSignature, err.Error())
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.Wrapf(errs.MalformedSignature, "expected %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	// Wallets emit v as 27/28; crypto.SigToPub wants 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, errors.Wrapf(errs.MalformedSignature, "invalid recovery id %d", sig[crypto.RecoveryIDOffset])
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(errs.MalformedSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}
