package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReferralConfig holds operational knobs that can change without a restart.
type ReferralConfig struct {
	Invitation InvitationSettings `mapstructure:"invitation"`
	Statement  StatementSettings  `mapstructure:"statement"`
	Reporting  ReportingSettings  `mapstructure:"reporting"`
}

type InvitationSettings struct {
	Subject     string `mapstructure:"subject"`
	RedirectURL string `mapstructure:"redirectUrl"`
}

type StatementSettings struct {
	Title  string `mapstructure:"title"`
	Footer string `mapstructure:"footer"`
}

type ReportingSettings struct {
	Timezone string `mapstructure:"timezone"`
}

func DefaultReferralConfig() ReferralConfig {
	return ReferralConfig{
		Invitation: InvitationSettings{
			Subject: "You're invited to become a partner",
		},
		Statement: StatementSettings{
			Title:  "Commission statement",
			Footer: "Amounts are month-to-date and rounded to two decimals.",
		},
		Reporting: ReportingSettings{
			Timezone: "UTC",
		},
	}
}

type ReferralConfigHolder struct {
	current atomic.Value // holds ReferralConfig
}

// NewStaticReferralConfigHolder returns a holder that never reloads.
func NewStaticReferralConfigHolder(cfg ReferralConfig) *ReferralConfigHolder {
	holder := &ReferralConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReferralConfigHolder(cfg Config, log *zap.Logger) (*ReferralConfigHolder, error) {
	log = log.Named("config.referral")

	v := viper.New()
	v.SetConfigName("referrals")
	v.SetConfigType("yml")
	if cfg.ConfigPath != "" {
		v.AddConfigPath(cfg.ConfigPath)
	}
	v.AddConfigPath("/etc/referrals")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REFERRALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReferralConfig()
	v.SetDefault("referrals.invitation.subject", defaults.Invitation.Subject)
	v.SetDefault("referrals.invitation.redirectUrl", cfg.Identity.RedirectURL)
	v.SetDefault("referrals.statement.title", defaults.Statement.Title)
	v.SetDefault("referrals.statement.footer", defaults.Statement.Footer)
	v.SetDefault("referrals.reporting.timezone", defaults.Reporting.Timezone)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var loaded ReferralConfig
	if err := v.UnmarshalKey("referrals", &loaded); err != nil {
		return nil, err
	}
	if err := validateReferralConfig(loaded); err != nil {
		return nil, err
	}

	holder := NewStaticReferralConfigHolder(loaded)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ReferralConfig
		if err := v.UnmarshalKey("referrals", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateReferralConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ReferralConfigHolder) Get() ReferralConfig {
	if h == nil {
		return DefaultReferralConfig()
	}
	return h.current.Load().(ReferralConfig)
}

// Location resolves the reporting timezone, falling back to UTC.
func (c ReferralConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Reporting.Timezone))
	if err != nil || c.Reporting.Timezone == "" {
		return time.UTC
	}
	return loc
}

func validateReferralConfig(cfg ReferralConfig) error {
	if strings.TrimSpace(cfg.Invitation.Subject) == "" {
		return errors.New("referrals.invitation.subject cannot be empty")
	}
	if tz := strings.TrimSpace(cfg.Reporting.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return errors.New("referrals.reporting.timezone is not a valid location")
		}
	}
	return nil
}
