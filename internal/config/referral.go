package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReferralConfig tunes code generation and link allocation.
type ReferralConfig struct {
	CodeAttempts        int           `mapstructure:"codeAttempts"`
	LinkAttempts        int           `mapstructure:"linkAttempts"`
	BackoffInitial      time.Duration `mapstructure:"backoffInitial"`
	BackoffMax          time.Duration `mapstructure:"backoffMax"`
	BlockedWords        []string      `mapstructure:"blockedWords"`
	ScopeCodesToProduct bool          `mapstructure:"scopeCodesToProduct"`
}

func DefaultReferralConfig() ReferralConfig {
	return ReferralConfig{
		CodeAttempts:        10,
		LinkAttempts:        5,
		BackoffInitial:      20 * time.Millisecond,
		BackoffMax:          500 * time.Millisecond,
		ScopeCodesToProduct: true,
	}
}

type ReferralConfigHolder struct {
	current atomic.Value // holds ReferralConfig
}

// NewStaticReferralConfigHolder wraps a fixed config, mainly for tests.
func NewStaticReferralConfigHolder(cfg ReferralConfig) *ReferralConfigHolder {
	holder := &ReferralConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReferralConfigHolder() (*ReferralConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("referral")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/referral")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REFERRAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReferralConfig()
	v.SetDefault("referral.codeAttempts", defaults.CodeAttempts)
	v.SetDefault("referral.linkAttempts", defaults.LinkAttempts)
	v.SetDefault("referral.backoffInitial", defaults.BackoffInitial)
	v.SetDefault("referral.backoffMax", defaults.BackoffMax)
	v.SetDefault("referral.blockedWords", []string{})
	v.SetDefault("referral.scopeCodesToProduct", defaults.ScopeCodesToProduct)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg ReferralConfig
	if err := v.UnmarshalKey("referral", &cfg); err != nil {
		return nil, err
	}
	if err := validateReferralConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticReferralConfigHolder(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ReferralConfig
			if err := v.UnmarshalKey("referral", &updated); err != nil {
				log.Printf("[referral-config] reload failed: %v", err)
				return
			}
			if err := validateReferralConfig(updated); err != nil {
				log.Printf("[referral-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[referral-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *ReferralConfigHolder) Get() ReferralConfig {
	if h == nil {
		return DefaultReferralConfig()
	}
	cfg, ok := h.current.Load().(ReferralConfig)
	if !ok {
		return DefaultReferralConfig()
	}
	return cfg
}

func validateReferralConfig(cfg ReferralConfig) error {
	if cfg.CodeAttempts <= 0 {
		return errors.New("referral.codeAttempts must be positive")
	}
	if cfg.LinkAttempts <= 0 {
		return errors.New("referral.linkAttempts must be positive")
	}
	if cfg.BackoffInitial < 0 || cfg.BackoffMax < cfg.BackoffInitial {
		return errors.New("referral.backoffMax must be >= referral.backoffInitial")
	}
	return nil
}
