package scheduler

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the declarative form of Options.
//
//	num_threads: 8
//	policy: partitioned
//	max_retries: 8
//	retry_penalty: 1.0
//	stop_check_every: 100
//	progress_interval: 5s
type Config struct {
	NumThreads       int           `yaml:"num_threads"`
	Policy           string        `yaml:"policy"`
	MaxRetries       *int          `yaml:"max_retries"`
	RetryPenalty     *float64      `yaml:"retry_penalty"`
	StopCheckEvery   int           `yaml:"stop_check_every"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// LoadConfig decodes and validates a YAML config. Unknown keys are errors;
// an empty document yields the zero Config.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("scheduler: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.NumThreads < 0 {
		return fmt.Errorf("scheduler: num_threads must be >= 0, got %d", c.NumThreads)
	}
	if _, err := ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("scheduler: max_retries must be >= 0, got %d", *c.MaxRetries)
	}
	if c.RetryPenalty != nil && *c.RetryPenalty < 0 {
		return fmt.Errorf("scheduler: retry_penalty must be >= 0, got %g", *c.RetryPenalty)
	}
	if c.StopCheckEvery < 0 {
		return fmt.Errorf("scheduler: stop_check_every must be >= 0, got %d", c.StopCheckEvery)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("scheduler: progress_interval must be >= 0, got %s", c.ProgressInterval)
	}
	return nil
}

// Options converts c to option funcs. Unset fields keep their defaults.
func (c Config) Options() []func(o *Options) {
	policy, _ := ParsePolicy(c.Policy)
	fns := []func(o *Options){
		func(o *Options) {
			o.NumThreads = c.NumThreads
			o.Policy = policy
		},
	}
	if c.MaxRetries != nil {
		n := *c.MaxRetries
		fns = append(fns, func(o *Options) { o.MaxRetries = n })
	}
	if c.RetryPenalty != nil {
		p := *c.RetryPenalty
		fns = append(fns, func(o *Options) { o.RetryPenalty = p })
	}
	if c.StopCheckEvery > 0 {
		fns = append(fns, func(o *Options) { o.StopCheckEvery = c.StopCheckEvery })
	}
	if c.ProgressInterval > 0 {
		fns = append(fns, func(o *Options) { o.ProgressInterval = c.ProgressInterval })
	}
	return fns
}
