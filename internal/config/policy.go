package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vintner/internal/invoice/format"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type RoundingMode string

const (
	RoundingHalfUp   RoundingMode = "half_up"
	RoundingHalfEven RoundingMode = "half_even"
)

// Round rounds d to places using the mode, half-up when unset.
func (m RoundingMode) Round(d decimal.Decimal, places int32) decimal.Decimal {
	if m == RoundingHalfEven {
		return d.RoundBank(places)
	}
	return d.Round(places)
}

// Policy is the tenant-facing pricing policy read from pricing.yml.
type Policy struct {
	DefaultBottlesPerCase int               `mapstructure:"defaultBottlesPerCase"`
	FallbackStateCode     string            `mapstructure:"fallbackStateCode"`
	TenantFallbacks       map[string]string `mapstructure:"tenantFallbacks"`
	Rounding              RoundingMode      `mapstructure:"rounding"`
	Override              OverridePolicy    `mapstructure:"override"`
	Sequence              SequencePolicy    `mapstructure:"sequence"`
}

type OverridePolicy struct {
	MinReasonLength    int     `mapstructure:"minReasonLength"`
	LargeChangePercent float64 `mapstructure:"largeChangePercent"`
}

type SequencePolicy struct {
	MaxAttempts int           `mapstructure:"maxAttempts"`
	LockTTL     time.Duration `mapstructure:"lockTTL"`
	// LockWait bounds how long one attempt queues for the Redis lock.
	LockWait time.Duration `mapstructure:"lockWait"`
}

func DefaultPolicy() Policy {
	return Policy{
		DefaultBottlesPerCase: 12,
		FallbackStateCode:     "VA",
		TenantFallbacks:       map[string]string{},
		Rounding:              RoundingHalfUp,
		Override: OverridePolicy{
			MinReasonLength:    1,
			LargeChangePercent: 20,
		},
		Sequence: SequencePolicy{
			MaxAttempts: 5,
			LockTTL:     5 * time.Second,
			LockWait:    10 * time.Second,
		},
	}
}

// FallbackFor returns the tenant's configured invoice state code fallback.
func (p Policy) FallbackFor(tenantID string) string {
	if code, ok := p.TenantFallbacks[strings.TrimSpace(tenantID)]; ok && strings.TrimSpace(code) != "" {
		return code
	}
	return p.FallbackStateCode
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func NewPolicyHolder(dir string) (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("/etc/vintner")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VINTNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setPolicyDefaults(v, DefaultPolicy())

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}

	cfg, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(cfg)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePolicy(v)
		if err != nil {
			zap.L().Warn("pricing policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("pricing policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return DefaultPolicy()
	}
	return h.current.Load().(Policy)
}

func setPolicyDefaults(v *viper.Viper, p Policy) {
	v.SetDefault("pricing.defaultBottlesPerCase", p.DefaultBottlesPerCase)
	v.SetDefault("pricing.fallbackStateCode", p.FallbackStateCode)
	v.SetDefault("pricing.rounding", string(p.Rounding))
	v.SetDefault("pricing.override.minReasonLength", p.Override.MinReasonLength)
	v.SetDefault("pricing.override.largeChangePercent", p.Override.LargeChangePercent)
	v.SetDefault("pricing.sequence.maxAttempts", p.Sequence.MaxAttempts)
	v.SetDefault("pricing.sequence.lockTTL", p.Sequence.LockTTL.String())
	v.SetDefault("pricing.sequence.lockWait", p.Sequence.LockWait.String())
}

func decodePolicy(v *viper.Viper) (Policy, error) {
	// Unmarshal the whole tree so defaults merge into partial files.
	var root struct {
		Pricing Policy `mapstructure:"pricing"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return Policy{}, err
	}
	cfg := root.Pricing
	if cfg.TenantFallbacks == nil {
		cfg.TenantFallbacks = map[string]string{}
	}
	if err := validatePolicy(cfg); err != nil {
		return Policy{}, err
	}
	return cfg, nil
}

func validatePolicy(cfg Policy) error {
	if cfg.DefaultBottlesPerCase <= 0 {
		return errors.New("pricing.defaultBottlesPerCase must be positive")
	}
	if !format.IsStateCode(cfg.FallbackStateCode) {
		return fmt.Errorf("pricing.fallbackStateCode %q must be two letters", cfg.FallbackStateCode)
	}
	for tenant, code := range cfg.TenantFallbacks {
		if !format.IsStateCode(code) {
			return fmt.Errorf("pricing.tenantFallbacks[%s] %q must be two letters", tenant, code)
		}
	}
	switch cfg.Rounding {
	case RoundingHalfUp, RoundingHalfEven:
	default:
		return fmt.Errorf("pricing.rounding %q is not supported", cfg.Rounding)
	}
	if cfg.Override.MinReasonLength < 1 {
		return errors.New("pricing.override.minReasonLength must be at least 1")
	}
	if cfg.Override.LargeChangePercent < 0 {
		return errors.New("pricing.override.largeChangePercent cannot be negative")
	}
	if cfg.Sequence.MaxAttempts < 1 {
		return errors.New("pricing.sequence.maxAttempts must be at least 1")
	}
	if cfg.Sequence.LockTTL <= 0 {
		return errors.New("pricing.sequence.lockTTL must be positive")
	}
	if cfg.Sequence.LockWait < 0 {
		return errors.New("pricing.sequence.lockWait cannot be negative")
	}
	return nil
}
