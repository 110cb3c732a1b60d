package inflight

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// MaxBufferingCount is the largest number of frames in flight a Manager can be configured for
const MaxBufferingCount int = 8

// Config holds the serializable settings for a Manager
type Config struct {
	// BufferingCount is the number of frames in flight, and the number of physical copies each buffered
	// resource is created with unless it asks otherwise
	BufferingCount int `mapstructure:"buffering_count"`
	// ExternallySynchronized disables every internal mutex, see CreateExternallySynchronized
	ExternallySynchronized bool `mapstructure:"externally_synchronized"`
	// StagingPriority is passed to ext_memory_priority for short-lived staging memory
	StagingPriority float32 `mapstructure:"staging_priority"`
	// ResourcePriority is passed to ext_memory_priority for the memory backing each physical copy
	ResourcePriority float32 `mapstructure:"resource_priority"`
	// HeapSizeLimits can be left empty. Otherwise it needs one entry per memory heap on the physical device,
	// each either a byte limit or -1 for no limit.
	HeapSizeLimits []int `mapstructure:"heap_size_limits"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() Config {
	return Config{
		BufferingCount:   2,
		StagingPriority:  0.25,
		ResourcePriority: 0.5,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.BufferingCount < 1 || c.BufferingCount > MaxBufferingCount {
		return errors.Wrapf(ErrInvalidConfig, "buffering_count must be between 1 and %d, received %d", MaxBufferingCount, c.BufferingCount)
	}

	if c.StagingPriority < 0 || c.StagingPriority > 1 {
		return errors.Wrapf(ErrInvalidConfig, "staging_priority must be between 0.0 and 1.0, received %f", c.StagingPriority)
	}

	if c.ResourcePriority < 0 || c.ResourcePriority > 1 {
		return errors.Wrapf(ErrInvalidConfig, "resource_priority must be between 0.0 and 1.0, received %f", c.ResourcePriority)
	}

	return nil
}

// LoadConfig loads configuration from defaults, the provided YAML file, and INFLIGHT_ environment
// variables, in increasing order of precedence. If cfgFile is empty, inflight.yaml is searched for in the
// working directory, and it is not an error for it to be missing.
func LoadConfig(cfgFile string) (Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("inflight")
	}

	v.SetEnvPrefix("INFLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "reading config")
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshaling config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("buffering_count", cfg.BufferingCount)
	v.SetDefault("externally_synchronized", cfg.ExternallySynchronized)
	v.SetDefault("staging_priority", cfg.StagingPriority)
	v.SetDefault("resource_priority", cfg.ResourcePriority)
	v.SetDefault("heap_size_limits", cfg.HeapSizeLimits)
}
