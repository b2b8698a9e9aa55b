package contracts

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"poap-backend/errs"
)

// PoapContract wraps the POAP token smart contract. It owns the minting
// account: nonce assignment is serialized under a mutex so batched
// submissions keep monotonic ordering, while confirmation waits overlap.
type PoapContract struct {
	client  *ethclient.Client
	address common.Address
	abi     abi.ABI
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int

	mu        sync.Mutex
	nextNonce uint64
	nonceInit bool

	pollInterval time.Duration
}

// NewPoapContract creates a contract client minting from the account
// behind key.
func NewPoapContract(client *ethclient.Client, address string, key *ecdsa.PrivateKey, chainID *big.Int) (*PoapContract, error) {
	// POAP token ABI - only the function we need
	poapABI := `[{"inputs":[{"internalType":"uint256","name":"eventId","type":"uint256"},{"internalType":"address","name":"to","type":"address"}],"name":"mintToken","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`

	parsedABI, err := abi.JSON(strings.NewReader(poapABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse POAP ABI")
	}

	return &PoapContract{
		client:       client,
		address:      common.HexToAddress(address),
		abi:          parsedABI,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		pollInterval: 2 * time.Second,
	}, nil
}

// Mint submits mintToken(eventId, recipient) and blocks until the
// transaction is mined or ctx expires. Returned errors carry
// errs.LedgerTransient or errs.LedgerPermanent; a confirmation timeout
// after a successful broadcast returns the tx hash together with
// errs.LedgerPending.
func (pc *PoapContract) Mint(ctx context.Context, eventID int64, recipient string) (string, error) {
	callData, err := pc.abi.Pack("mintToken", big.NewInt(eventID), common.HexToAddress(recipient))
	if err != nil {
		return "", errors.Wrap(errs.LedgerPermanent, err.Error())
	}

	tx, err := pc.submit(ctx, callData)
	if err != nil {
		return "", err
	}

	receipt, err := pc.waitMined(ctx, tx.Hash())
	if err != nil {
		// The transaction is already on the node; re-entering the submit
		// path would broadcast a second mint with the next nonce.
		return tx.Hash().Hex(), errors.Wrapf(errs.LedgerPending, "tx %s broadcast but not confirmed: %v", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", errors.Wrapf(errs.LedgerPermanent, "mint reverted in tx %s", tx.Hash().Hex())
	}
	return tx.Hash().Hex(), nil
}

// submit signs and sends one transaction. The whole assignment-to-send
// window is under the mutex: a send failure returns the nonce to the pool
// before any other submission can take the next one.
func (pc *PoapContract) submit(ctx context.Context, callData []byte) (*types.Transaction, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if !pc.nonceInit {
		nonce, err := pc.client.PendingNonceAt(ctx, pc.from)
		if err != nil {
			return nil, classify(err)
		}
		pc.nextNonce = nonce
		pc.nonceInit = true
	}

	gasPrice, err := pc.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify(err)
	}

	tx := types.NewTransaction(pc.nextNonce, pc.address, big.NewInt(0), 300_000, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(pc.chainID), pc.key)
	if err != nil {
		return nil, errors.Wrap(errs.LedgerPermanent, err.Error())
	}

	if err := pc.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, classify(err)
	}
	pc.nextNonce++
	return signedTx, nil
}

func (pc *PoapContract) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(pc.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := pc.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "waiting for tx %s", txHash.Hex())
		case <-ticker.C:
		}
	}
}

// classify sorts a ledger error into transient (retry) or permanent
// (surface immediately).
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Wrap(errs.LedgerTransient, err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors.Wrap(errs.LedgerTransient, err.Error())
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection refused", "connection reset", "too many requests", "busy", "temporarily unavailable"} {
		if strings.Contains(msg, marker) {
			return errors.Wrap(errs.LedgerTransient, err.Error())
		}
	}
	return errors.Wrap(errs.LedgerPermanent, err.Error())
}
