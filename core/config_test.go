package core

import (
	"errors"
	"testing"

	"github.com/decisionfoundry/hedge-engine/model"
)

func validConfig() Config {
	return Config{
		DefaultRho:    1,
		HubWorkers:    1,
		MaxIterations: 10,
		RelGap:        0.01,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"baseline", func(c *Config) {}, true},
		{"subgradient strategy", func(c *Config) { c.Strategy = "subgradient" }, true},
		{"zero rho", func(c *Config) { c.DefaultRho = 0 }, false},
		{"negative rho", func(c *Config) { c.DefaultRho = -1 }, false},
		{"unknown strategy", func(c *Config) { c.Strategy = "admm" }, false},
		{"no stopping criterion", func(c *Config) {
			c.MaxIterations = 0
			c.RelGap = 0
		}, false},
		{"time limit alone suffices", func(c *Config) {
			c.MaxIterations = 0
			c.RelGap = 0
			c.TimeLimit = 1
		}, true},
		{"negative gap", func(c *Config) { c.AbsGap = -1 }, false},
		{"zero workers", func(c *Config) { c.HubWorkers = 0 }, false},
		{"stall without epsilon", func(c *Config) { c.StallIterations = 5 }, false},
		{"stall with epsilon", func(c *Config) {
			c.StallIterations = 5
			c.StallEpsilon = 1e-6
		}, true},
		{"surrogate needs real bundles", func(c *Config) { c.SurrogateBundles = true }, false},
		{"surrogate with bundles", func(c *Config) {
			c.SurrogateBundles = true
			c.BundleSize = 2
		}, true},
		{"negative poll interval", func(c *Config) { c.SpokePollInterval = -1 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("Validate accepted an invalid configuration")
				}
				if !errors.Is(err, model.ErrConfig) {
					t.Fatalf("error is %v, want ErrConfig", err)
				}
			}
		})
	}
}

func TestStrategyNameDefaultsToPH(t *testing.T) {
	if got := (Config{}).StrategyName(); got != "ph" {
		t.Fatalf("StrategyName = %q, want ph", got)
	}
	if got := (Config{Strategy: "subgradient"}).StrategyName(); got != "subgradient" {
		t.Fatalf("StrategyName = %q, want subgradient", got)
	}
}
