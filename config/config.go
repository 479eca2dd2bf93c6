package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/joho/godotenv"

	"reward-bot/common"
)

const (
	DefaultPath      = "config/config.json"
	DefaultStreamURL = "wss://api.mainnet-beta.solana.com/"
	DefaultRPCURL    = "https://api.mainnet-beta.solana.com"

	envPrefix = "REWARDBOT_"
)

// Duration is a time.Duration that reads "10s" style strings from JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

type Config struct {
	StreamURL      string   `json:"stream_url"`
	RPCURL         string   `json:"rpc_url"`
	Threshold      *big.Int `json:"threshold"`
	RewardLamports int64    `json:"reward_lamports"`
	Commitment     string   `json:"commitment"`
	Subscribe      bool     `json:"subscribe"`
	Mentions       []string `json:"mentions"`
	KeypairPath    string   `json:"keypair_path"`
	DryRun         bool     `json:"dry_run"`

	RPCTimeout     Duration `json:"rpc_timeout"`
	ConfirmTimeout Duration `json:"confirm_timeout"`
	PollInterval   Duration `json:"poll_interval"`

	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
	MetricsAddr string `json:"metrics_addr"`

	NATSURL      string   `json:"nats_url"`
	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic"`
}

// Default returns the fixed endpoints and amounts the bot runs with when
// nothing else is configured.
func Default() Config {
	return Config{
		StreamURL:      DefaultStreamURL,
		RPCURL:         DefaultRPCURL,
		Threshold:      big.NewInt(common.DefaultThreshold),
		RewardLamports: common.DefaultRewardLamports,
		Commitment:     common.CommitmentConfirmed,
		RPCTimeout:     Duration(10 * time.Second),
		ConfirmTimeout: Duration(60 * time.Second),
		PollInterval:   Duration(500 * time.Millisecond),
		LogLevel:       "info",
		LogFormat:      "terminal",
		KafkaTopic:     "rewardbot-events",
	}
}

// LoadConfig layers, in order: defaults, the JSON file at path, a .env file
// and REWARDBOT_* environment variables. A missing file at the default path
// is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %w", err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.StreamURL, "STREAM_URL")
	setString(&c.RPCURL, "RPC_URL")
	setString(&c.Commitment, "COMMITMENT")
	setString(&c.KeypairPath, "KEYPAIR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	setString(&c.NATSURL, "NATS_URL")
	setString(&c.KafkaTopic, "KAFKA_TOPIC")
	setList(&c.Mentions, "MENTIONS")
	setList(&c.KafkaBrokers, "KAFKA_BROKERS")

	if v := os.Getenv(envPrefix + "THRESHOLD"); v != "" {
		t, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return fmt.Errorf("%sTHRESHOLD: invalid integer %q", envPrefix, v)
		}
		c.Threshold = t
	}
	if v := os.Getenv(envPrefix + "REWARD_LAMPORTS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sREWARD_LAMPORTS: %w", envPrefix, err)
		}
		c.RewardLamports = n
	}
	for key, dst := range map[string]*bool{"DRY_RUN": &c.DryRun, "SUBSCRIBE": &c.Subscribe} {
		if v := os.Getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = b
		}
	}
	for key, dst := range map[string]*Duration{
		"RPC_TIMEOUT":     &c.RPCTimeout,
		"CONFIRM_TIMEOUT": &c.ConfirmTimeout,
		"POLL_INTERVAL":   &c.PollInterval,
	} {
		if v := os.Getenv(envPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = Duration(d)
		}
	}
	return nil
}

// RewardAmount returns the reward in lamports as the unsigned value the
// transfer instruction takes.
func (c Config) RewardAmount() (uint64, error) {
	v, err := safecast.ToUint64(c.RewardLamports)
	if err != nil {
		return 0, fmt.Errorf("reward_lamports: %w", err)
	}
	if v == 0 {
		return 0, errors.New("reward_lamports must be positive")
	}
	return v, nil
}

func (c Config) Validate() error {
	if c.StreamURL == "" {
		return errors.New("stream_url is required")
	}
	if c.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if c.Threshold == nil || c.Threshold.Sign() <= 0 {
		return errors.New("threshold must be positive")
	}
	if _, err := c.RewardAmount(); err != nil {
		return err
	}
	if !common.ValidCommitment(c.Commitment) {
		return fmt.Errorf("unknown commitment %q", c.Commitment)
	}
	if c.RPCTimeout <= 0 || c.ConfirmTimeout <= 0 || c.PollInterval <= 0 {
		return errors.New("rpc_timeout, confirm_timeout and poll_interval must be positive")
	}
	if c.NATSURL != "" && len(c.KafkaBrokers) > 0 {
		return errors.New("nats_url and kafka_brokers are mutually exclusive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
