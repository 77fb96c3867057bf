package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DeploymentAddresses is a config-file override for one network's contract
// pair, both addresses hex-encoded.
type DeploymentAddresses struct {
	Token  string
	Oracle string
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Network        uint64
	RPCURL         string
	RPCURLs        map[uint64]string
	PrivateKey     string
	JournalPath    string
	JournalDSN     string
	CheckpointPath string
	Deployments    map[uint64]DeploymentAddresses
	MaxRetries     int
	RetryBackoff   time.Duration
	PollInterval   time.Duration
	LogLevel       string
	AutoApprove    bool
}

// EndpointFor returns the RPC endpoint for a network: an explicit --rpc
// override wins, then the per-network table.
func (c Config) EndpointFor(network uint64) (string, bool) {
	if c.RPCURL != "" {
		return c.RPCURL, true
	}
	url, ok := c.RPCURLs[network]
	return url, ok
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOKENCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("network", uint64(31337))
	v.SetDefault("journal", "./data/writes.jsonl")
	v.SetDefault("checkpoint", "./data/scan_checkpoint.json")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("poll-interval", 2*time.Second)
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

	rpcURLs, err := getNetworkMap(v, "rpc-urls")
	if err != nil {
		return Config{}, fmt.Errorf("rpc-urls: %w", err)
	}
	deployments, err := getDeploymentMap(v, "deployments")
	if err != nil {
		return Config{}, fmt.Errorf("deployments: %w", err)
	}

	cfg := Config{
		Network:        v.GetUint64("network"),
		RPCURL:         v.GetString("rpc"),
		RPCURLs:        rpcURLs,
		PrivateKey:     v.GetString("key"),
		JournalPath:    v.GetString("journal"),
		JournalDSN:     v.GetString("pg-dsn"),
		CheckpointPath: v.GetString("checkpoint"),
		Deployments:    deployments,
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		PollInterval:   v.GetDuration("poll-interval"),
		LogLevel:       v.GetString("log-level"),
		AutoApprove:    v.GetBool("yes"),
	}

	return cfg, nil
}

func getNetworkMap(v *viper.Viper, key string) (map[uint64]string, error) {
	raw := getStringMap(v, key)
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[uint64]string, len(raw))
	for k, val := range raw {
		network, err := strconv.ParseUint(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid network id: %s", k)
		}
		out[network] = strings.TrimSpace(val)
	}
	return out, nil
}

// getDeploymentMap reads a network section whose values are
// "tokenAddress,oracleAddress" pairs.
func getDeploymentMap(v *viper.Viper, key string) (map[uint64]DeploymentAddresses, error) {
	raw := getStringMap(v, key)
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[uint64]DeploymentAddresses, len(raw))
	for k, val := range raw {
		network, err := strconv.ParseUint(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid network id: %s", k)
		}
		parts := strings.Split(val, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("network %d: expected token,oracle pair, got %q", network, val)
		}
		out[network] = DeploymentAddresses{
			Token:  strings.TrimSpace(parts[0]),
			Oracle: strings.TrimSpace(parts[1]),
		}
	}
	return out, nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ";")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
