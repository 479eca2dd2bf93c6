package common

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// DefaultRewardLamports is 0.5 SOL.
const DefaultRewardLamports = 500_000_000

// RPCCaller is the JSON-RPC surface the submitter needs. *rpc.Client satisfies it.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type SubmitterOptions struct {
	Lamports       uint64
	Commitment     string
	RPCTimeout     time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	// DryRun builds and signs the transaction but never sends it.
	DryRun bool
}

func DefaultSubmitterOptions() SubmitterOptions {
	return SubmitterOptions{
		Lamports:       DefaultRewardLamports,
		Commitment:     CommitmentConfirmed,
		RPCTimeout:     10 * time.Second,
		ConfirmTimeout: 60 * time.Second,
		PollInterval:   500 * time.Millisecond,
	}
}

// RewardResult describes a reward transfer that was confirmed (or signed, in dry-run mode).
type RewardResult struct {
	Signature solana.Signature
	Recipient solana.PublicKey
	Lamports  uint64
	Blockhash solana.Hash
	Slot      uint64
	DryRun    bool
}

// Submitter sends a reward to a detected target.
type Submitter interface {
	Submit(ctx context.Context, id *SigningIdentity, target TargetIdentity) (RewardResult, error)
}

// RewardSubmitter builds, signs and submits single transfer transactions
// over Solana JSON-RPC.
type RewardSubmitter struct {
	client RPCCaller
	opts   SubmitterOptions
}

// DialRPC opens the JSON-RPC client used for submission.
func DialRPC(ctx context.Context, url string) (*rpc.Client, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc %s: %w", url, err)
	}
	return client, nil
}

func NewRewardSubmitter(client RPCCaller, opts SubmitterOptions) *RewardSubmitter {
	def := DefaultSubmitterOptions()
	if opts.Lamports == 0 {
		opts.Lamports = def.Lamports
	}
	if opts.Commitment == "" {
		opts.Commitment = def.Commitment
	}
	if opts.RPCTimeout <= 0 {
		opts.RPCTimeout = def.RPCTimeout
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = def.ConfirmTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	return &RewardSubmitter{client: client, opts: opts}
}

func (s *RewardSubmitter) Submit(ctx context.Context, id *SigningIdentity, target TargetIdentity) (RewardResult, error) {
	blockhash, lastValid, slot, err := s.latestBlockhash(ctx)
	if err != nil {
		return RewardResult{}, fmt.Errorf("%w: %w", ErrFreshnessUnavailable, err)
	}

	tx, err := BuildRewardTransaction(id.PublicKey(), target.Address, s.opts.Lamports, blockhash)
	if err != nil {
		return RewardResult{}, err
	}
	if err := id.Sign(tx); err != nil {
		return RewardResult{}, err
	}

	res := RewardResult{
		Signature: tx.Signatures[0],
		Recipient: target.Address,
		Lamports:  s.opts.Lamports,
		Blockhash: blockhash,
		Slot:      slot,
		DryRun:    s.opts.DryRun,
	}
	if s.opts.DryRun {
		return res, nil
	}

	sig, err := s.send(ctx, tx)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrRejectedOrTimedOut, err)
	}
	res.Signature = sig

	confirmedSlot, err := s.awaitConfirmation(ctx, sig, lastValid)
	if err != nil {
		return res, fmt.Errorf("%w: %s: %w", ErrRejectedOrTimedOut, sig, err)
	}
	res.Slot = confirmedSlot
	return res, nil
}

// BuildRewardTransaction creates an unsigned transfer of lamports from -> to,
// with from as fee payer.
func BuildRewardTransaction(from, to solana.PublicKey, lamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	if from.Equals(to) {
		return nil, errors.New("reward recipient equals sender")
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("building reward transaction: %w", err)
	}
	if err := checkRewardTransaction(tx, from); err != nil {
		return nil, err
	}
	return tx, nil
}

// checkRewardTransaction enforces one instruction, one signer, and the signer as fee payer.
func checkRewardTransaction(tx *solana.Transaction, payer solana.PublicKey) error {
	msg := tx.Message
	if n := len(msg.Instructions); n != 1 {
		return fmt.Errorf("reward transaction has %d instructions, want 1", n)
	}
	if n := msg.Header.NumRequiredSignatures; n != 1 {
		return fmt.Errorf("reward transaction requires %d signatures, want 1", n)
	}
	if len(msg.AccountKeys) == 0 || !msg.AccountKeys[0].Equals(payer) {
		return errors.New("reward transaction fee payer is not the signer")
	}
	return nil
}

func (s *RewardSubmitter) latestBlockhash(ctx context.Context) (solana.Hash, uint64, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RPCTimeout)
	defer cancel()

	var out latestBlockhashResult
	if err := s.client.CallContext(ctx, &out, "getLatestBlockhash", commitmentConfig{Commitment: s.opts.Commitment}); err != nil {
		return solana.Hash{}, 0, 0, err
	}
	hash, err := solana.HashFromBase58(out.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, 0, 0, fmt.Errorf("decoding blockhash %q: %w", out.Value.Blockhash, err)
	}
	return hash, out.Value.LastValidBlockHeight, out.Context.Slot, nil
}

func (s *RewardSubmitter) send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	wire, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("encoding transaction: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RPCTimeout)
	defer cancel()

	var sigStr string
	err = s.client.CallContext(ctx, &sigStr, "sendTransaction",
		base64.StdEncoding.EncodeToString(wire),
		sendTransactionConfig{Encoding: "base64", PreflightCommitment: s.opts.Commitment},
	)
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return solana.Signature{}, fmt.Errorf("sendTransaction rejected (code %d): %w", rpcErr.ErrorCode(), err)
		}
		return solana.Signature{}, fmt.Errorf("sendTransaction: %w", err)
	}
	sig, err := solana.SignatureFromBase58(sigStr)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("decoding signature %q: %w", sigStr, err)
	}
	return sig, nil
}

// awaitConfirmation polls the signature status until it reaches the
// configured commitment, fails, the blockhash expires or ConfirmTimeout elapses.
func (s *RewardSubmitter) awaitConfirmation(ctx context.Context, sig solana.Signature, lastValid uint64) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		status, err := s.signatureStatus(ctx, sig)
		if err != nil {
			return 0, err
		}
		if status != nil {
			txErr, err := decodeTxError(status.Err)
			if err != nil {
				return 0, fmt.Errorf("decoding status error of %s: %w", sig, err)
			}
			if txErr != nil {
				return 0, fmt.Errorf("transaction failed: %s", *txErr)
			}
			if commitmentRank(status.ConfirmationStatus) >= commitmentRank(s.opts.Commitment) {
				return status.Slot, nil
			}
		} else if lastValid > 0 {
			height, err := s.blockHeight(ctx)
			if err == nil && height > lastValid {
				return 0, fmt.Errorf("blockhash expired at height %d", height)
			}
		}

		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("awaiting confirmation: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *RewardSubmitter) signatureStatus(ctx context.Context, sig solana.Signature) (*signatureStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RPCTimeout)
	defer cancel()

	var out signatureStatusesResult
	err := s.client.CallContext(ctx, &out, "getSignatureStatuses",
		[]string{sig.String()}, signatureStatusesConfig{SearchTransactionHistory: false})
	if err != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}
	if len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

func (s *RewardSubmitter) blockHeight(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RPCTimeout)
	defer cancel()

	var height uint64
	err := s.client.CallContext(ctx, &height, "getBlockHeight", commitmentConfig{Commitment: s.opts.Commitment})
	return height, err
}
