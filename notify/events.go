package notify

import "context"

// Event topics. NATS uses them as subjects; Kafka carries them as the message key.
const (
	TopicDetection    = "rewardbot.detection"
	TopicRewardSent   = "rewardbot.reward.sent"
	TopicRewardFailed = "rewardbot.reward.failed"
)

type Detection struct {
	EventID    string `json:"event_id"`
	Signature  string `json:"signature"`
	Slot       uint64 `json:"slot,omitempty"`
	Line       string `json:"line"`
	Amount     string `json:"amount"`
	Recipient  string `json:"recipient"`
	Synthetic  bool   `json:"synthetic"`
	DetectedAt string `json:"detected_at"`
}

type RewardSent struct {
	EventID   string `json:"event_id"`
	Signature string `json:"signature"`
	Recipient string `json:"recipient"`
	Lamports  uint64 `json:"lamports"`
	Slot      uint64 `json:"slot,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

type RewardFailed struct {
	EventID   string `json:"event_id"`
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
	Error     string `json:"error"`
}

// Publisher is the interface for emitting outcome events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
