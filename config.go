package fedtree

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/absmach/fedtree/pkg/channel"
	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml"
)

const (
	EnvPrefix = "FEDTREE_"

	BackendMemory = "memory"
	BackendMQTT   = "mqtt"
	BackendRedis  = "redis"

	defaultServerBinary = "./bin/FedTree-distributed-server"
	defaultClientBinary = "./bin/FedTree-distributed-party"
	defaultDataDir      = "./data"
	defaultHTTPAddr     = ":9090"
	defaultLogLevel     = "info"
)

var (
	errInvalidBackend = errors.New("invalid backend")
	errLocalBackend   = errors.New("backend is local to one process")
)

type Config struct {
	Participant ParticipantConfig `toml:"participant" envPrefix:"PARTICIPANT_"`
	Binaries    BinariesConfig    `toml:"binaries"    envPrefix:"BINARIES_"`
	Data        DataConfig        `toml:"data"        envPrefix:"DATA_"`
	Channel     ChannelConfig     `toml:"channel"     envPrefix:"CHANNEL_"`
	Store       StoreConfig       `toml:"store"       envPrefix:"STORE_"`
	Protocol    ProtocolConfig    `toml:"protocol"    envPrefix:"PROTOCOL_"`
	Output      OutputConfig      `toml:"output"      envPrefix:"OUTPUT_"`
	Log         LogConfig         `toml:"log"         envPrefix:"LOG_"`
	HTTP        HTTPConfig        `toml:"http"        envPrefix:"HTTP_"`
}

type ParticipantConfig struct {
	ID string `toml:"id" env:"ID"`
}

type BinariesConfig struct {
	Server string `toml:"server" env:"SERVER"`
	Client string `toml:"client" env:"CLIENT"`
}

type DataConfig struct {
	Dir string `toml:"dir" env:"DIR"`
	// Features extends the built-in dataset feature table.
	Features map[string]int `toml:"features" env:"FEATURES"`
}

type ChannelConfig struct {
	Backend string `toml:"backend" env:"BACKEND"`
	// Key is a hex encoded AES-256 key shared by all participants. Values are
	// sent in the clear when empty.
	Key string `toml:"key" env:"KEY"`

	MQTTURL      string `toml:"mqtt_url"       env:"MQTT_URL"`
	MQTTQoS      int    `toml:"mqtt_qos"       env:"MQTT_QOS"`
	MQTTUsername string `toml:"mqtt_username"  env:"MQTT_USERNAME"`
	MQTTPassword string `toml:"mqtt_password"  env:"MQTT_PASSWORD"`
	MQTTTimeoutS int    `toml:"mqtt_timeout_s" env:"MQTT_TIMEOUT_S"`
	MQTTCAPath   string `toml:"mqtt_ca_path"   env:"MQTT_CA_PATH"`
	MQTTCertPath string `toml:"mqtt_cert_path" env:"MQTT_CERT_PATH"`
	MQTTKeyPath  string `toml:"mqtt_key_path"  env:"MQTT_KEY_PATH"`

	RedisURL    string `toml:"redis_url"    env:"REDIS_URL"`
	RedisPrefix string `toml:"redis_prefix" env:"REDIS_PREFIX"`
	RedisTTLS   int    `toml:"redis_ttl_s"  env:"REDIS_TTL_S"`
	RedisPollS  int    `toml:"redis_poll_s" env:"REDIS_POLL_S"`
}

type StoreConfig struct {
	Backend  string `toml:"backend"   env:"BACKEND"`
	RedisURL string `toml:"redis_url" env:"REDIS_URL"`
	Prefix   string `toml:"prefix"    env:"PREFIX"`
	TTLS     int    `toml:"ttl_s"     env:"TTL_S"`
}

type ProtocolConfig struct {
	// Zero timeouts wait until the run is cancelled.
	RendezvousTimeoutS int    `toml:"rendezvous_timeout_s" env:"RENDEZVOUS_TIMEOUT_S"`
	CompletionTimeoutS int    `toml:"completion_timeout_s" env:"COMPLETION_TIMEOUT_S"`
	AdvertiseAddress   string `toml:"advertise_address"    env:"ADVERTISE_ADDRESS"`
	TempDir            string `toml:"temp_dir"             env:"TEMP_DIR"`
}

type OutputConfig struct {
	Marker string `toml:"marker" env:"MARKER"`
	Field  string `toml:"field"  env:"FIELD"`
}

type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
}

type HTTPConfig struct {
	Addr string `toml:"addr" env:"ADDR"`
}

// LoadConfig reads the TOML file at path, when given, and overlays FEDTREE_*
// environment variables.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		tree, err := toml.Load(string(data))
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}

		if err := tree.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("error unmarshaling config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Binaries.Server == "" {
		c.Binaries.Server = defaultServerBinary
	}
	if c.Binaries.Client == "" {
		c.Binaries.Client = defaultClientBinary
	}
	if c.Data.Dir == "" {
		c.Data.Dir = defaultDataDir
	}
	if c.Channel.Backend == "" {
		c.Channel.Backend = BackendMQTT
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = defaultHTTPAddr
	}
}

// Validate checks backend names and bounds. Broker URLs are checked when the
// backend is opened.
func (c *Config) Validate() error {
	var errs []error

	switch c.Channel.Backend {
	case BackendMQTT, BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("channel %w: %q", errInvalidBackend, c.Channel.Backend))
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store %w: %q", errInvalidBackend, c.Store.Backend))
	}

	if c.Channel.Key != "" {
		if key, err := hex.DecodeString(c.Channel.Key); err != nil || len(key) != channel.KeySize {
			errs = append(errs, errors.New("channel.key must be 64 hex characters"))
		}
	}

	if c.Protocol.RendezvousTimeoutS < 0 || c.Protocol.CompletionTimeoutS < 0 {
		errs = append(errs, errors.New("protocol timeouts must not be negative"))
	}

	return errors.Join(errs...)
}

// CheckRun rejects configurations under which participants started as
// separate processes can never meet. The memory channel is for tests and
// single-process deployments only.
func (c *Config) CheckRun() error {
	if c.Channel.Backend == BackendMemory {
		return fmt.Errorf("channel %w: use mqtt or redis to run participants as separate processes", errLocalBackend)
	}

	return nil
}

// CheckQuery rejects a store that cannot hold outcomes of other processes.
func (c *Config) CheckQuery() error {
	if c.Store.Backend == BackendMemory {
		return fmt.Errorf("store %w: use redis to query results of finished runs", errLocalBackend)
	}

	return nil
}

// ChannelKey returns the decoded channel key, nil when unset.
func (c *Config) ChannelKey() []byte {
	key, err := hex.DecodeString(c.Channel.Key)
	if err != nil || len(key) == 0 {
		return nil
	}

	return key
}

func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
