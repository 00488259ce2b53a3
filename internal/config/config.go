package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"zapScope/internal/zapper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL        string
	ChainID       uint64
	NativeSymbol  string
	Router        string
	Factory       string
	WrappedNative string
	Zapper        string
	BaseTokens    []string
	Multihop      bool

	PrivateKey string
	Account    string

	RateLimit    float64
	RateBurst    int
	MaxRetries   int
	RetryBackoff time.Duration
	PollInterval time.Duration
	GasBufferBps uint64

	SwapDeadline  time.Duration
	ExactApproval bool
	Debounce      time.Duration
	Severity      zapper.SeverityPolicy

	SlippageFile string
	Journal      string
	PGDSN        string

	MetricsAddr string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ZAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	defaultSeverity := zapper.DefaultSeverityPolicy()
	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("multihop", true)
	v.SetDefault("rate-limit", 0.0)
	v.SetDefault("rate-burst", 1)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("gas-buffer-bps", uint64(2000))
	v.SetDefault("swap-deadline", 20*time.Minute)
	v.SetDefault("debounce", 300*time.Millisecond)
	v.SetDefault("severity.low_bps", defaultSeverity.LowBps)
	v.SetDefault("severity.medium_bps", defaultSeverity.MediumBps)
	v.SetDefault("severity.blocked_bps", defaultSeverity.BlockedBps)
	v.SetDefault("slippage-file", "./data/slippage.json")
	v.SetDefault("journal", "./data/submissions.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:        v.GetString("rpc"),
		ChainID:       v.GetUint64("chain-id"),
		NativeSymbol:  v.GetString("native-symbol"),
		Router:        v.GetString("router"),
		Factory:       v.GetString("factory"),
		WrappedNative: v.GetString("wrapped-native"),
		Zapper:        v.GetString("zapper"),
		BaseTokens:    getStringSlice(v, "base-tokens"),
		Multihop:      v.GetBool("multihop"),
		PrivateKey:    v.GetString("private-key"),
		Account:       v.GetString("account"),
		RateLimit:     v.GetFloat64("rate-limit"),
		RateBurst:     v.GetInt("rate-burst"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		PollInterval:  v.GetDuration("poll-interval"),
		GasBufferBps:  v.GetUint64("gas-buffer-bps"),
		SwapDeadline:  v.GetDuration("swap-deadline"),
		ExactApproval: v.GetBool("exact-approval"),
		Debounce:      v.GetDuration("debounce"),
		Severity: zapper.SeverityPolicy{
			LowBps:     v.GetUint64("severity.low_bps"),
			MediumBps:  v.GetUint64("severity.medium_bps"),
			BlockedBps: v.GetUint64("severity.blocked_bps"),
		},
		SlippageFile: v.GetString("slippage-file"),
		Journal:      v.GetString("journal"),
		PGDSN:        v.GetString("pg-dsn"),
		MetricsAddr:  v.GetString("metrics-addr"),
		LogLevel:     v.GetString("log-level"),
	}
	applyChainDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	s := c.Severity
	if !(s.LowBps <= s.MediumBps && s.MediumBps <= s.BlockedBps) {
		return fmt.Errorf("severity breakpoints must be ordered: low %d, medium %d, blocked %d", s.LowBps, s.MediumBps, s.BlockedBps)
	}
	if s.BlockedBps > 10_000 {
		return fmt.Errorf("blocked breakpoint %d bps exceeds 100%%", s.BlockedBps)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
