package config

import (
	"fmt"
	"time"

	"github.com/modelingevolution/hailopipe"
	"github.com/modelingevolution/hailopipe/internal/bchan"
)

func parsePolicy(s string) (bchan.Policy, error) {
	switch s {
	case "oldest":
		return bchan.Oldest, nil
	case "newest":
		return bchan.Newest, nil
	default:
		return 0, fmt.Errorf("config: unknown drop policy %q", s)
	}
}

// ToPipelineConfig translates the viper-loaded configuration into a
// hailopipe.Config, resolving string durations and policy names into
// their typed equivalents. Converter/Decoder/Anchors/Logger are left at
// hailopipe.DefaultConfig's values; callers wire real collaborators in
// afterward.
func (c *PipelineConfig) ToPipelineConfig() (hailopipe.Config, error) {
	cfg := hailopipe.DefaultConfig()

	cfg.WriteCap = c.Channels.Write.Capacity
	cfg.ReadCap = c.Channels.Read.Capacity
	cfg.PostCap = c.Channels.Post.Capacity
	cfg.CallbackCap = c.Channels.Callback.Capacity

	var err error
	if cfg.WritePolicy, err = parsePolicy(c.Channels.Write.DropPolicy); err != nil {
		return cfg, err
	}
	if cfg.PostPolicy, err = parsePolicy(c.Channels.Post.DropPolicy); err != nil {
		return cfg, err
	}
	if cfg.CallbackPolicy, err = parsePolicy(c.Channels.Callback.DropPolicy); err != nil {
		return cfg, err
	}

	cfg.PostWorkers = c.Workers.Post
	cfg.CallbackWorkers = c.Workers.Callback

	if cfg.ReadJoinTimeout, err = time.ParseDuration(c.Timeouts.ReadJoin); err != nil {
		return cfg, fmt.Errorf("config: timeouts.read_join: %w", err)
	}
	if cfg.PostTimeout, err = time.ParseDuration(c.Timeouts.Post); err != nil {
		return cfg, fmt.Errorf("config: timeouts.post: %w", err)
	}
	if cfg.CallbackTimeout, err = time.ParseDuration(c.Timeouts.Callback); err != nil {
		return cfg, fmt.Errorf("config: timeouts.callback: %w", err)
	}

	cfg.ReadJoinBacklogLimit = c.ReadJoinBacklogLimit
	cfg.DefaultConfidence = c.DefaultConfidence
	cfg.ReaderAffinity = c.ReaderAffinity

	return cfg, nil
}
