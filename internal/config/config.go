package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	ProviderPubNub   = "pubnub"
	ProviderFirebase = "firebase"
	ProviderMemory   = "memory"
)

var Providers = []string{ProviderPubNub, ProviderFirebase, ProviderMemory}

var (
	ErrInvalidProvider     = errors.New("transport provider must be one of pubnub, firebase, memory")
	ErrInvalidChannel      = errors.New("channel must be set")
	ErrInvalidPubNubKeys   = errors.New("PubNub publish and subscribe keys must be set")
	ErrInvalidFirebase     = errors.New("Firebase project, database URL, storage bucket and credentials path must be set")
	ErrInvalidPollInterval = errors.New("Firebase poll interval must be positive")
	ErrInvalidLogLevel     = errors.New("log level is not recognised")
)

// Config holds all application configuration
type Config struct {
	Channel      string          `mapstructure:"channel"`
	UserIDPrefix string          `mapstructure:"user_id_prefix"`
	Transport    TransportConfig `mapstructure:"transport"`
	Download     DownloadConfig  `mapstructure:"download"`
	Log          LogConfig       `mapstructure:"log"`
}

// TransportConfig selects and configures the hosted file transport
type TransportConfig struct {
	Provider string         `mapstructure:"provider"`
	PubNub   PubNubConfig   `mapstructure:"pubnub"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
}

// PubNubConfig holds PubNub keyset configuration
type PubNubConfig struct {
	PublishKey   string `mapstructure:"publish_key"`
	SubscribeKey string `mapstructure:"subscribe_key"`
}

// FirebaseConfig holds Firebase client configuration
type FirebaseConfig struct {
	ProjectID       string        `mapstructure:"project_id"`
	DatabaseURL     string        `mapstructure:"database_url"`
	StorageBucket   string        `mapstructure:"storage_bucket"`
	CredentialsPath string        `mapstructure:"credentials_path"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

type DownloadConfig struct {
	// DropStale discards download completions superseded by a newer notification
	DropStale bool `mapstructure:"drop_stale"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// NewDefaultConfig returns a configuration pointing at the public demo keyset
func NewDefaultConfig() *Config {
	return &Config{
		Channel:      "files-demo-channel",
		UserIDPrefix: "files-demo-user-",
		Transport: TransportConfig{
			Provider: ProviderPubNub,
			PubNub: PubNubConfig{
				PublishKey:   "demo-36",
				SubscribeKey: "demo-36",
			},
			Firebase: FirebaseConfig{
				PollInterval: 2 * time.Second,
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers the default configuration with v so that
// environment variables can override every key.
func SetDefaults(v *viper.Viper) {
	def := NewDefaultConfig()
	v.SetDefault("channel", def.Channel)
	v.SetDefault("user_id_prefix", def.UserIDPrefix)
	v.SetDefault("transport.provider", def.Transport.Provider)
	v.SetDefault("transport.pubnub.publish_key", def.Transport.PubNub.PublishKey)
	v.SetDefault("transport.pubnub.subscribe_key", def.Transport.PubNub.SubscribeKey)
	v.SetDefault("transport.firebase.project_id", def.Transport.Firebase.ProjectID)
	v.SetDefault("transport.firebase.database_url", def.Transport.Firebase.DatabaseURL)
	v.SetDefault("transport.firebase.storage_bucket", def.Transport.Firebase.StorageBucket)
	v.SetDefault("transport.firebase.credentials_path", def.Transport.Firebase.CredentialsPath)
	v.SetDefault("transport.firebase.poll_interval", def.Transport.Firebase.PollInterval)
	v.SetDefault("download.drop_stale", def.Download.DropStale)
	v.SetDefault("log.level", def.Log.Level)
}

// EnvPrefix namespaces environment overrides, e.g. FILECAST_TRANSPORT_PROVIDER
const EnvPrefix = "FILECAST"

// BindEnv makes every key of v overridable from the environment
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the configuration held by v and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if err := validation.Validate(c.Channel, validation.Required); err != nil {
		return ErrInvalidChannel
	}
	if !lo.Contains(Providers, c.Transport.Provider) {
		return ErrInvalidProvider
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}

	switch c.Transport.Provider {
	case ProviderPubNub:
		p := c.Transport.PubNub
		err := validation.ValidateStruct(&p,
			validation.Field(&p.PublishKey, validation.Required),
			validation.Field(&p.SubscribeKey, validation.Required),
		)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidPubNubKeys, err.Error())
		}
	case ProviderFirebase:
		f := c.Transport.Firebase
		err := validation.ValidateStruct(&f,
			validation.Field(&f.ProjectID, validation.Required),
			validation.Field(&f.DatabaseURL, validation.Required),
			validation.Field(&f.StorageBucket, validation.Required),
			validation.Field(&f.CredentialsPath, validation.Required),
		)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidFirebase, err.Error())
		}
		if f.PollInterval <= 0 {
			return ErrInvalidPollInterval
		}
	}
	return nil
}

// NewUserID returns the per-session user identifier. It is only meant to
// make concurrent demo sessions distinguishable.
func (c *Config) NewUserID(now time.Time) string {
	return c.UserIDPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}
