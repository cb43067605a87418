package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(newPolicyHolder),
)

func newPolicyHolder(cfg Config) (*PolicyHolder, error) {
	return NewPolicyHolder(cfg.PolicyPath)
}
