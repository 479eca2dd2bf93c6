package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"reward-bot/common"
	"reward-bot/config"
	"reward-bot/metrics"
	"reward-bot/notify"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath     string
	streamURL      string
	rpcURL         string
	threshold      string
	reward         int64
	commitment     string
	subscribe      bool
	mentions       []string
	keypair        string
	dryRun         bool
	rpcTimeout     time.Duration
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logLevel       string
	logFormat      string
	metricsAddr    string
	natsURL        string
	kafkaBrokers   []string
	kafkaTopic     string
}

func newRootCmd() *cobra.Command {
	var f cliFlags
	cmd := &cobra.Command{
		Use:          "reward-bot",
		Short:        "Watch Solana transaction logs and reward large transfers",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(f.configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &cfg, f); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg); err != nil {
				log.Error("Exiting", "err", err)
				return err
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "path to JSON config file (default "+config.DefaultPath+" if present)")
	fl.StringVar(&f.streamURL, "stream-url", "", "websocket endpoint streaming transaction logs")
	fl.StringVar(&f.rpcURL, "rpc-url", "", "JSON-RPC endpoint used to submit rewards")
	fl.StringVar(&f.threshold, "threshold", "", "transfer amount in lamports that counts as large")
	fl.Int64Var(&f.reward, "reward", 0, "reward amount in lamports")
	fl.StringVar(&f.commitment, "commitment", "", "commitment level: processed, confirmed or finalized")
	fl.BoolVar(&f.subscribe, "subscribe", false, "send logsSubscribe after connecting")
	fl.StringSliceVar(&f.mentions, "mention", nil, "only stream logs mentioning this address (repeatable)")
	fl.StringVar(&f.keypair, "keypair", "", "solana-keygen keypair file (default: ephemeral key)")
	fl.BoolVar(&f.dryRun, "dry-run", false, "build and sign rewards without sending them")
	fl.DurationVar(&f.rpcTimeout, "rpc-timeout", 0, "timeout for a single RPC call")
	fl.DurationVar(&f.confirmTimeout, "confirm-timeout", 0, "how long to wait for a reward to confirm")
	fl.DurationVar(&f.pollInterval, "poll-interval", 0, "signature status polling interval")
	fl.StringVar(&f.logLevel, "log-level", "", "trace, debug, info, warn, error or crit")
	fl.StringVar(&f.logFormat, "log-format", "", "terminal, logfmt or json")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	fl.StringVar(&f.natsURL, "nats-url", "", "publish outcome events to this NATS server")
	fl.StringSliceVar(&f.kafkaBrokers, "kafka-brokers", nil, "publish outcome events to these Kafka brokers")
	fl.StringVar(&f.kafkaTopic, "kafka-topic", "", "Kafka topic for outcome events")

	return cmd
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f cliFlags) error {
	changed := cmd.Flags().Changed
	if changed("stream-url") {
		cfg.StreamURL = f.streamURL
	}
	if changed("rpc-url") {
		cfg.RPCURL = f.rpcURL
	}
	if changed("threshold") {
		t, ok := new(big.Int).SetString(f.threshold, 10)
		if !ok {
			return fmt.Errorf("--threshold: invalid integer %q", f.threshold)
		}
		cfg.Threshold = t
	}
	if changed("reward") {
		cfg.RewardLamports = f.reward
	}
	if changed("commitment") {
		cfg.Commitment = f.commitment
	}
	if changed("subscribe") {
		cfg.Subscribe = f.subscribe
	}
	if changed("mention") {
		cfg.Mentions = f.mentions
	}
	if changed("keypair") {
		cfg.KeypairPath = f.keypair
	}
	if changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if changed("rpc-timeout") {
		cfg.RPCTimeout = config.Duration(f.rpcTimeout)
	}
	if changed("confirm-timeout") {
		cfg.ConfirmTimeout = config.Duration(f.confirmTimeout)
	}
	if changed("poll-interval") {
		cfg.PollInterval = config.Duration(f.pollInterval)
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if changed("nats-url") {
		cfg.NATSURL = f.natsURL
	}
	if changed("kafka-brokers") {
		cfg.KafkaBrokers = f.kafkaBrokers
	}
	if changed("kafka-topic") {
		cfg.KafkaTopic = f.kafkaTopic
	}
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	identity, err := loadIdentity(cfg.KeypairPath)
	if err != nil {
		return err
	}
	log.Info("Signing identity ready", "pubkey", identity.PublicKey(), "ephemeral", cfg.KeypairPath == "")

	lamports, err := cfg.RewardAmount()
	if err != nil {
		return err
	}
	log.Info("Checking for transfers", "threshold", cfg.Threshold, "reward", lamports, "dryrun", cfg.DryRun)

	rpcClient, err := common.DialRPC(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer rpcClient.Close()

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil {
				log.Warn("Metrics server stopped", "addr", cfg.MetricsAddr, "err", err)
			}
		}()
	}

	stream, err := common.DialStream(ctx, cfg.StreamURL, common.StreamOptions{
		Subscribe:  cfg.Subscribe,
		Mentions:   cfg.Mentions,
		Commitment: cfg.Commitment,
	})
	if err != nil {
		return err
	}
	defer stream.Close()
	log.Info("Connected to Solana WebSocket!", "url", stream.URL())

	bot := NewBot(BotDeps{
		Stream:   stream,
		Detector: common.NewThresholdDetector(cfg.Threshold),
		Submitter: common.NewRewardSubmitter(rpcClient, common.SubmitterOptions{
			Lamports:       lamports,
			Commitment:     cfg.Commitment,
			RPCTimeout:     time.Duration(cfg.RPCTimeout),
			ConfirmTimeout: time.Duration(cfg.ConfirmTimeout),
			PollInterval:   time.Duration(cfg.PollInterval),
			DryRun:         cfg.DryRun,
		}),
		Identity:  identity,
		Publisher: publisher,
		Metrics:   m,
		Logger:    log.Root(),
	})
	return bot.Run(ctx)
}

func loadIdentity(path string) (*common.SigningIdentity, error) {
	if path == "" {
		return common.NewSigningIdentity()
	}
	return common.LoadSigningIdentity(path)
}

func newPublisher(cfg config.Config) (notify.Publisher, error) {
	switch {
	case cfg.NATSURL != "":
		return notify.NewNATSPublisher(cfg.NATSURL)
	case len(cfg.KafkaBrokers) > 0:
		return notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return &notify.NoopPublisher{}, nil
	}
}
