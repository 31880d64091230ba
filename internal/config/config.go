// Package config loads the core's tuning configuration: the pruning-filter
// registry grammar, the default match policy, planner constants, and
// logging knobs. This is config for the matching/allocation core itself,
// not the CLI front-end (option parsing for the CLI is an external
// collaborator per spec.md §1).
//
// Grounded on the teacher's internal/config/config.go loader shape
// (viper-backed, struct-of-structs bound with yaml tags, defaults applied
// in code, optional file or env override) generalized from node/cluster
// settings to the resource-graph core's own knobs.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the complete configuration for one traverser instance.
type Config struct {
	Graph     GraphConfig     `yaml:"graph"`
	Planner   PlannerConfig   `yaml:"planner"`
	Filters   FiltersConfig   `yaml:"filters"`
	Policy    PolicyConfig    `yaml:"policy"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// GraphConfig carries the knobs governing the planners a freshly primed
// graph is built with (spec.md §4.1, §4.6.1).
type GraphConfig struct {
	// BaseTime is the start of the scheduling horizon every planner and
	// subplan is primed over (spec.md §4.1's base_time).
	BaseTime int64 `yaml:"base_time"`
	// Duration is the scheduling horizon's length in seconds.
	Duration uint64 `yaml:"duration"`
	// DominantSubsystem names the containment subsystem the traverser
	// walks depth-first (spec.md §2 glossary, "dom").
	DominantSubsystem string `yaml:"dominant_subsystem"`
}

// PlannerConfig carries the exclusivity-counter constant and any other
// planner-wide tuning (spec.md §3, X_CHECKER_NJOBS).
type PlannerConfig struct {
	// XCheckerNJobs is the exclusivity counter's total, configurable per
	// original_source/ exposing it as a build-time constant rather than a
	// fixed literal (spec.md §9 supplemented features).
	XCheckerNJobs uint64 `yaml:"x_checker_njobs"`
}

// FiltersConfig is the pruning-filter registry's configuration string,
// parsed by pkg/filter per spec.md §4.4's grammar
// ("anchor:tracked,anchor:tracked,...").
type FiltersConfig struct {
	// Spec is one filter-registration string per subsystem.
	Spec map[string]string `yaml:"spec"`
	// ExclusiveTypes seeds the match policy's exclusivity registry
	// (spec.md §4.5) at startup, before any jobspec priming runs.
	ExclusiveTypes []string `yaml:"exclusive_types"`
}

// PolicyConfig selects and tunes the default match policy (spec.md §4.5).
type PolicyConfig struct {
	// Name selects a registered policy: "first-fit", "low-score", or
	// "high-id-first" (pkg/policy's builtins).
	Name string `yaml:"name"`
	// StopOnKMatches configures the dynamic out-edge exploration early
	// exit (spec.md §4.6.2); 0 disables it (static iteration).
	StopOnKMatches int `yaml:"stop_on_k_matches"`
}

// LoggingConfig configures rglog's root logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig configures the Prometheus registry query.Context.Stat
// reports through (spec.md §6.4, SPEC_FULL.md DOMAIN STACK).
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DefaultConfig returns the out-of-the-box configuration: a one-day
// horizon starting now-independent epoch 0, the "containment" dominant
// subsystem, X_CHECKER_NJOBS = 2^30, and the first-fit policy with
// dynamic exploration disabled.
func DefaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			BaseTime:          0,
			Duration:          86400,
			DominantSubsystem: "containment",
		},
		Planner: PlannerConfig{
			XCheckerNJobs: 1 << 30,
		},
		Filters: FiltersConfig{
			Spec: map[string]string{
				"containment": "ALL:core,ALL:gpu",
			},
		},
		Policy: PolicyConfig{
			Name:           "first-fit",
			StopOnKMatches: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
	}
}

// Load reads configuration from configFile (or the standard search path
// when empty), overlays GRIDMATCH_-prefixed environment variables, and
// validates the result.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("gridmatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.gridmatch")
		v.AddConfigPath("/etc/gridmatch")
	}

	v.SetEnvPrefix("GRIDMATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate applies the basic sanity checks Load runs after unmarshaling.
func (c *Config) Validate() error {
	if c.Graph.Duration == 0 {
		return fmt.Errorf("graph.duration must be > 0")
	}
	if c.Graph.DominantSubsystem == "" {
		return fmt.Errorf("graph.dominant_subsystem must not be empty")
	}
	if c.Planner.XCheckerNJobs == 0 {
		return fmt.Errorf("planner.x_checker_njobs must be > 0")
	}
	if c.Policy.Name == "" {
		return fmt.Errorf("policy.name must not be empty")
	}
	if c.Policy.StopOnKMatches < 0 {
		return fmt.Errorf("policy.stop_on_k_matches must be >= 0")
	}
	return nil
}

// Save writes cfg to filename as YAML.
func (c *Config) Save(filename string) error {
	v := viper.New()
	v.Set("graph", c.Graph)
	v.Set("planner", c.Planner)
	v.Set("filters", c.Filters)
	v.Set("policy", c.Policy)
	v.Set("logging", c.Logging)
	v.Set("metrics", c.Metrics)
	v.SetConfigFile(filename)
	return v.WriteConfigAs(filename)
}
