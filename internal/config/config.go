// Package config loads the pipeline's runtime configuration with viper,
// the way the rest of the pack's services load theirs: a typed struct,
// `mapstructure` tags, sane defaults, and env-var overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ChannelConfig configures one of the pipeline's bounded stage channels.
type ChannelConfig struct {
	Capacity   int    `mapstructure:"capacity"`
	DropPolicy string `mapstructure:"drop_policy"` // "oldest" | "newest"
}

// ChannelsConfig configures all four stage channels (spec.md §4.1.1).
type ChannelsConfig struct {
	Write    ChannelConfig `mapstructure:"write"`
	Read     ChannelConfig `mapstructure:"read"`
	Post     ChannelConfig `mapstructure:"post"`
	Callback ChannelConfig `mapstructure:"callback"`
}

// WorkersConfig sizes the PostProcess and Callback worker pools.
type WorkersConfig struct {
	Post     int `mapstructure:"post"`
	Callback int `mapstructure:"callback"`
}

// TimeoutsConfig holds the per-stage blocking-read timeouts.
type TimeoutsConfig struct {
	ReadJoin string `mapstructure:"read_join"` // e.g. "1s"
	Post     string `mapstructure:"post"`      // e.g. "10s"
	Callback string `mapstructure:"callback"`  // e.g. "5s"
}

// LogConfig configures the ambient logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PipelineConfig is the full, viper-loadable pipeline configuration.
type PipelineConfig struct {
	ModelPath         string         `mapstructure:"model_path"`
	Channels          ChannelsConfig `mapstructure:"channels"`
	Workers           WorkersConfig  `mapstructure:"workers"`
	Timeouts          TimeoutsConfig `mapstructure:"timeouts"`
	Log               LogConfig      `mapstructure:"log"`
	DefaultConfidence float32        `mapstructure:"default_confidence"`

	// ReadJoinBacklogLimit is the pre-admission gating threshold from
	// spec.md §4.1.2/§9 Open Question #2, promoted from a hard-coded
	// constant to configuration.
	ReadJoinBacklogLimit uint64 `mapstructure:"read_join_backlog_limit"`

	// ReaderAffinity, if non-empty, pins reader thread i to CPU
	// ReaderAffinity[i % len(ReaderAffinity)].
	ReaderAffinity []int `mapstructure:"reader_affinity"`
}

const envPrefix = "HAILOPIPE"

// Load reads configuration from the given file path (if non-empty),
// then layers HAILOPIPE_-prefixed environment variables on top, then
// applies defaults for anything still unset.
func Load(path string) (*PipelineConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("channels.write.capacity", 2)
	v.SetDefault("channels.write.drop_policy", "oldest")
	v.SetDefault("channels.read.capacity", 2)
	v.SetDefault("channels.read.drop_policy", "oldest")
	v.SetDefault("channels.post.capacity", 4)
	v.SetDefault("channels.post.drop_policy", "oldest")
	v.SetDefault("channels.callback.capacity", 2)
	v.SetDefault("channels.callback.drop_policy", "oldest")

	v.SetDefault("workers.post", 0) // 0 => host core count, resolved at Start
	v.SetDefault("workers.callback", 2)

	v.SetDefault("timeouts.read_join", "1s")
	v.SetDefault("timeouts.post", "10s")
	v.SetDefault("timeouts.callback", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("default_confidence", 0.5)
	v.SetDefault("read_join_backlog_limit", 2)
}

// Validate rejects configuration that would make the pipeline
// unschedulable or violate a named invariant.
func (c *PipelineConfig) Validate() error {
	for name, ch := range map[string]ChannelConfig{
		"write": c.Channels.Write, "read": c.Channels.Read,
		"post": c.Channels.Post, "callback": c.Channels.Callback,
	} {
		if ch.Capacity <= 0 {
			return fmt.Errorf("config: channels.%s.capacity must be > 0", name)
		}
		switch ch.DropPolicy {
		case "oldest", "newest":
		default:
			return fmt.Errorf("config: channels.%s.drop_policy must be oldest|newest, got %q", name, ch.DropPolicy)
		}
	}
	if c.Workers.Callback <= 0 {
		return fmt.Errorf("config: workers.callback must be > 0")
	}
	if c.ReadJoinBacklogLimit == 0 {
		return fmt.Errorf("config: read_join_backlog_limit must be > 0")
	}
	return nil
}
