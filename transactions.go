package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"reward-bot/common"
	"reward-bot/metrics"
	"reward-bot/notify"
)

const publishTimeout = 5 * time.Second

// Stream is the sequence of raw frames the bot consumes.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
}

type State int32

const (
	StateIdle State = iota
	StateListening
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

type BotDeps struct {
	Stream    Stream
	Detector  common.Detector
	Submitter common.Submitter
	Identity  *common.SigningIdentity
	Publisher notify.Publisher
	Metrics   *metrics.Metrics
	Logger    log.Logger
}

// Bot reads the log stream and rewards the counterparty of every large
// transfer. Messages are handled one at a time; a reward submission blocks
// the stream until it is confirmed or fails.
type Bot struct {
	stream    Stream
	detector  common.Detector
	submitter common.Submitter
	identity  *common.SigningIdentity
	publisher notify.Publisher
	metrics   *metrics.Metrics
	log       log.Logger
	state     atomic.Int32
}

func NewBot(deps BotDeps) *Bot {
	b := &Bot{
		stream:    deps.Stream,
		detector:  deps.Detector,
		submitter: deps.Submitter,
		identity:  deps.Identity,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		log:       deps.Logger,
	}
	if b.publisher == nil {
		b.publisher = &notify.NoopPublisher{}
	}
	if b.metrics == nil {
		b.metrics = metrics.New(nil)
	}
	if b.log == nil {
		b.log = log.Root()
	}
	return b
}

func (b *Bot) State() State {
	return State(b.state.Load())
}

// Run consumes the stream until it ends or ctx is cancelled. A cancelled
// context is a clean stop and returns nil; a stream failure or a rejected
// subscription is returned.
func (b *Bot) Run(ctx context.Context) error {
	b.state.Store(int32(StateListening))
	defer b.state.Store(int32(StateStopped))

	for {
		if ctx.Err() != nil {
			b.log.Info("Shutdown requested, stopping")
			return nil
		}

		raw, err := b.stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				b.log.Info("Shutdown requested, stopping")
				return nil
			}
			b.log.Error("Log stream ended", "err", err)
			return err
		}

		if err := b.processMessage(ctx, raw); err != nil {
			return err
		}
	}
}

// processMessage handles one frame. Only a rejected subscription is returned;
// every other problem is logged and the frame skipped.
func (b *Bot) processMessage(ctx context.Context, raw []byte) error {
	b.metrics.Messages.Inc()

	rec, err := common.ParseLogRecord(raw)
	switch {
	case errors.Is(err, common.ErrSubscriptionAck):
		b.log.Debug("Log subscription confirmed", "reply", string(raw))
		return nil
	case errors.Is(err, common.ErrConnect):
		b.log.Error("Log subscription rejected", "err", err)
		return err
	case err != nil:
		b.metrics.ParseErrors.Inc()
		b.log.Warn("Failed to parse transaction log", "err", err)
		return nil
	}

	b.log.Info("Transaction", "sig", rec.Signature, "slot", rec.Slot, "failed", rec.Failed())

	det := b.detector.Detect(rec)
	for _, line := range det.TransferLines {
		b.metrics.TransferLines.Inc()
		b.log.Info("Detected transfer", "sig", rec.Signature, "line", line)
	}
	if !det.Matched {
		return nil
	}
	b.rewardLargeBuyer(ctx, rec, det)
	return nil
}

func (b *Bot) rewardLargeBuyer(ctx context.Context, rec common.LogRecord, det common.Detection) {
	b.metrics.Detections.Inc()
	recipient := det.Target.Address.String()
	b.log.Info("Large buyer detected! Sending reward", "event", det.EventID, "sig", rec.Signature,
		"amount", det.Amount, "recipient", recipient)
	if det.Target.Synthetic {
		b.log.Warn("Reward recipient is a generated placeholder, not read from the logs", "event", det.EventID, "recipient", recipient)
	}

	b.publish(ctx, notify.TopicDetection, notify.Detection{
		EventID:    det.EventID,
		Signature:  rec.Signature,
		Slot:       rec.Slot,
		Line:       det.Line,
		Amount:     det.Amount.String(),
		Recipient:  recipient,
		Synthetic:  det.Target.Synthetic,
		DetectedAt: time.Now().UTC().Format(time.RFC3339),
	})

	// An in-flight reward always runs to completion, even during shutdown.
	start := time.Now()
	res, err := b.submitter.Submit(context.WithoutCancel(ctx), b.identity, det.Target)
	took := time.Since(start)

	if err != nil {
		b.metrics.ObserveReward(metrics.OutcomeFailed, took)
		reason := failureReason(err)
		b.log.Error("Failed to send reward transaction", "event", det.EventID, "recipient", recipient,
			"reason", reason, "err", err)
		b.publish(ctx, notify.TopicRewardFailed, notify.RewardFailed{
			EventID:   det.EventID,
			Recipient: recipient,
			Reason:    reason,
			Error:     err.Error(),
		})
		return
	}

	outcome := metrics.OutcomeSent
	if res.DryRun {
		outcome = metrics.OutcomeDryRun
	}
	b.metrics.ObserveReward(outcome, took)
	b.log.Info("Reward transaction sent successfully", "event", det.EventID, "sig", res.Signature,
		"recipient", recipient, "lamports", res.Lamports, "slot", res.Slot, "dryrun", res.DryRun, "elapsed", took)
	b.publish(ctx, notify.TopicRewardSent, notify.RewardSent{
		EventID:   det.EventID,
		Signature: res.Signature.String(),
		Recipient: recipient,
		Lamports:  res.Lamports,
		Slot:      res.Slot,
		DryRun:    res.DryRun,
	})
}

func (b *Bot) publish(ctx context.Context, topic string, event any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := b.publisher.Publish(ctx, topic, event); err != nil {
		b.log.Warn("Failed to publish event", "topic", topic, "err", err)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, common.ErrFreshnessUnavailable):
		return "freshness_unavailable"
	case errors.Is(err, common.ErrRejectedOrTimedOut):
		return "rejected_or_timed_out"
	default:
		return "build_failed"
	}
}
