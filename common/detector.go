package common

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// DefaultThreshold is 1 SOL in lamports.
const DefaultThreshold = 1_000_000_000

const transferMarker = "transfer"

var amountPattern = regexp.MustCompile(`amount:\s*(\d+)`)

// TargetIdentity is the account a reward is sent to.
type TargetIdentity struct {
	Address solana.PublicKey
	// Synthetic is set when the address was generated rather than read from the logs.
	Synthetic bool
}

// Detection is the outcome of evaluating one LogRecord.
type Detection struct {
	Matched       bool
	Target        TargetIdentity
	Line          string
	Amount        *big.Int
	TransferLines []string
	EventID       string
}

// Detector decides whether a record describes a large transfer.
type Detector interface {
	Detect(rec LogRecord) Detection
}

// ThresholdDetector scans human readable log lines for transfer amounts at
// or above Threshold. It does not decode instruction data.
type ThresholdDetector struct {
	Threshold *big.Int
	// NewTarget produces the recipient for a qualifying line. Defaults to a
	// fresh random public key.
	NewTarget func() solana.PublicKey
}

func NewThresholdDetector(threshold *big.Int) *ThresholdDetector {
	if threshold == nil {
		threshold = big.NewInt(DefaultThreshold)
	}
	return &ThresholdDetector{
		Threshold: new(big.Int).Set(threshold),
		NewTarget: placeholderTarget,
	}
}

func placeholderTarget() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func (d *ThresholdDetector) Detect(rec LogRecord) Detection {
	var det Detection
	for _, line := range rec.Logs {
		if !strings.Contains(line, transferMarker) {
			continue
		}
		det.TransferLines = append(det.TransferLines, line)

		amount := d.largestAmount(line)
		if amount == nil || amount.Cmp(d.Threshold) < 0 {
			continue
		}
		// later qualifying lines replace earlier ones
		det.Matched = true
		det.Line = line
		det.Amount = amount
		det.Target = TargetIdentity{Address: d.NewTarget(), Synthetic: true}
	}
	if det.Matched {
		det.EventID = uuid.New().String()
	}
	return det
}

func (d *ThresholdDetector) largestAmount(line string) *big.Int {
	var largest *big.Int
	for _, m := range amountPattern.FindAllStringSubmatch(line, -1) {
		v, ok := new(big.Int).SetString(m[1], 10)
		if !ok {
			continue
		}
		if largest == nil || v.Cmp(largest) > 0 {
			largest = v
		}
	}
	return largest
}
