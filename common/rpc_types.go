package common

import "encoding/json"

// Commitment levels understood by Solana RPC, weakest first.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

func commitmentRank(c string) int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// ValidCommitment reports whether c is one of the known commitment levels.
func ValidCommitment(c string) bool {
	return commitmentRank(c) > 0
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type commitmentConfig struct {
	Commitment string `json:"commitment,omitempty"`
}

type latestBlockhashResult struct {
	Context rpcContext `json:"context"`
	Value   struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

type sendTransactionConfig struct {
	Encoding            string `json:"encoding"`
	PreflightCommitment string `json:"preflightCommitment,omitempty"`
	SkipPreflight       bool   `json:"skipPreflight"`
	MaxRetries          *uint  `json:"maxRetries,omitempty"`
}

type signatureStatusesConfig struct {
	SearchTransactionHistory bool `json:"searchTransactionHistory"`
}

type signatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

type signatureStatusesResult struct {
	Context rpcContext         `json:"context"`
	Value   []*signatureStatus `json:"value"`
}
