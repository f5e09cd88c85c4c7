package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrMissing is returned by Validate when required values are absent.
var ErrMissing = errors.New("missing required configuration")

// Role selects which half of the bridge a configuration must support.
type Role int

const (
	RoleGateway Role = iota
	RoleRelay
	RoleAll
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Duration reads "10s"-style values from both JSON and the environment.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Ledger    LedgerConfig    `json:"ledger"`
	Transport TransportConfig `json:"transport"`
	Lookups   LookupsConfig   `json:"lookups"`
	Relay     RelayConfig     `json:"relay"`
	Log       LogConfig       `json:"log"`
}

type DiscordConfig struct {
	Token     string              `env:"DISCORD_BOT_TOKEN"           json:"token"`
	ChannelID string              `env:"DISCORD_CHANNEL_ID"          json:"channel_id"`
	AllowFrom FlexibleStringSlice `env:"AOBRIDGE_DISCORD_ALLOW_FROM" json:"allow_from"`
}

type LedgerConfig struct {
	WalletPath string `env:"AOS_WALLET_PATH"     json:"wallet_path"`
	// ProcessID is the bridge's own AO process; chat messages are
	// submitted to it.
	ProcessID string `env:"AOS_PID"             json:"process_id"`
	// PolledProcessID is the process whose broadcasts are relayed to chat.
	PolledProcessID string `env:"GETTING_STARTED_PID" json:"polled_process_id"`
	MessengerURL    string `env:"AO_MU_URL"           json:"mu_url"`
	ComputeURL      string `env:"AO_CU_URL"           json:"cu_url"`
}

type TransportConfig struct {
	Addr           string   `env:"AOBRIDGE_TRANSPORT_ADDR"  json:"addr"`
	ReconnectDelay Duration `env:"AOBRIDGE_RECONNECT_DELAY" json:"reconnect_delay"`
}

// URL is the address the ledger half dials.
func (t TransportConfig) URL() string {
	return "ws://" + t.Addr + "/"
}

type LookupsConfig struct {
	WeatherAPIKey string `env:"OPENWEATHER_API_KEY" json:"weather_api_key"`
	WeatherCity   string `env:"WEATHER_CITY"        json:"weather_city"`
	CoinAPIKey    string `env:"COINAPI_API_KEY"     json:"coinapi_key"`
}

type RelayConfig struct {
	SelfNickname    string   `env:"AOBRIDGE_SELF_NICKNAME"    json:"self_nickname"`
	SubmitAction    string   `env:"AOBRIDGE_SUBMIT_ACTION"    json:"submit_action"`
	BroadcastAction string   `env:"AOBRIDGE_BROADCAST_ACTION" json:"broadcast_action"`
	AnnounceAction  string   `env:"AOBRIDGE_ANNOUNCE_ACTION"  json:"announce_action"`
	Announce        bool     `env:"AOBRIDGE_ANNOUNCE"         json:"announce"`
	PollInterval    Duration `env:"AOBRIDGE_POLL_INTERVAL"    json:"poll_interval"`
	PollLimit       int      `env:"AOBRIDGE_POLL_LIMIT"       json:"poll_limit"`
	DedupTTL        Duration `env:"AOBRIDGE_DEDUP_TTL"        json:"dedup_ttl"`
	LanguageFile    string   `env:"AOBRIDGE_LANGUAGE_FILE"    json:"language_file"`
}

type LogConfig struct {
	Level string `env:"AOBRIDGE_LOG_LEVEL" json:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			MessengerURL: "https://mu.ao-testnet.xyz",
			ComputeURL:   "https://cu.ao-testnet.xyz",
		},
		Transport: TransportConfig{
			Addr:           "127.0.0.1:8080",
			ReconnectDelay: Duration(10 * time.Second),
		},
		Lookups: LookupsConfig{
			WeatherCity: "Antarctica",
		},
		Relay: RelayConfig{
			SubmitAction:    "Beam to Getting-Started",
			BroadcastAction: "Broadcasted",
			AnnounceAction:  "ToDiscord",
			PollInterval:    Duration(10 * time.Second),
			PollLimit:       50,
			DedupTTL:        Duration(60 * time.Second),
			LanguageFile:    "userLanguage.json",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig starts from DefaultConfig, applies the JSON file at path when it
// exists, then the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every required value missing for role, by its
// environment variable name.
func (c *Config) Validate(role Role) error {
	var missing []string
	need := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	if role == RoleGateway || role == RoleAll {
		need(c.Discord.Token, "DISCORD_BOT_TOKEN")
		need(c.Discord.ChannelID, "DISCORD_CHANNEL_ID")
		need(c.Lookups.WeatherAPIKey, "OPENWEATHER_API_KEY")
		need(c.Lookups.CoinAPIKey, "COINAPI_API_KEY")
	}
	// The relay half only signs when it re-announces.
	if role != RoleRelay || c.Relay.Announce {
		need(c.Ledger.WalletPath, "AOS_WALLET_PATH")
	}
	need(c.Ledger.ProcessID, "AOS_PID")
	if role == RoleRelay || role == RoleAll {
		need(c.Ledger.PolledProcessID, "GETTING_STARTED_PID")
	}
	need(c.Transport.Addr, "AOBRIDGE_TRANSPORT_ADDR")

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}
