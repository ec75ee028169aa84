// Package config loads engine tunables from an optional YAML file with
// sensible defaults, via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the engine and its components consume.
type Config struct {
	// CacheTTL bounds how long a cache entry is considered fresh. Coarse
	// on purpose: the cache optimizes for navigation reuse, not freshness.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// CachePrefix namespaces persistent cache keys.
	CachePrefix string `mapstructure:"cache_prefix"`

	// PageSize is the default maxResults for list fetches.
	PageSize int64 `mapstructure:"page_size"`

	// LabelTreeTopN caps the number of root-level nodes returned by the
	// label aggregator.
	LabelTreeTopN int `mapstructure:"label_tree_top_n"`

	// QuoteHeaderKeywords are localized reply-header leaders ("From:",
	// "Von:", ...) whose presence marks the start of quoted content.
	// New locales are additive configuration, not code.
	QuoteHeaderKeywords []string `mapstructure:"quote_header_keywords"`

	// QuoteDOMSizeLimit is the body size above which quote stripping
	// switches from the DOM walk to the cheaper regex path.
	QuoteDOMSizeLimit int `mapstructure:"quote_dom_size_limit"`

	// AutomatedSenderPatterns mark senders that never receive auto-replies.
	AutomatedSenderPatterns []string `mapstructure:"automated_sender_patterns"`

	// InternalAddresses are the account's own addresses, also excluded
	// from auto-replies.
	InternalAddresses []string `mapstructure:"internal_addresses"`

	// AttachmentMinSize filters noise attachments (inline logos, tracking
	// pixels) below this byte count from thread listings.
	AttachmentMinSize int64 `mapstructure:"attachment_min_size"`

	// AttachmentNoisePatterns filter attachments whose name matches known
	// signature/logo/icon conventions.
	AttachmentNoisePatterns []string `mapstructure:"attachment_noise_patterns"`

	// ActiveProfile is the profile active at startup.
	ActiveProfile string `mapstructure:"active_profile"`

	// Profiles are the account identities known to the daemon.
	Profiles []ProfileConfig `mapstructure:"profiles"`
}

// ProfileConfig declares one account identity.
type ProfileConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Email       string `mapstructure:"email"`
	OutOfOffice bool   `mapstructure:"out_of_office"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_ttl", 25*time.Minute)
	v.SetDefault("cache_prefix", "inboxcore")
	v.SetDefault("page_size", 25)
	v.SetDefault("label_tree_top_n", 12)
	v.SetDefault("quote_header_keywords", []string{
		"From:", "Sent:", "To:", "Subject:", // en
		"De:", "Enviado:", "Para:", "Asunto:", // es
		"Von:", "Gesendet:", "An:", "Betreff:", // de
		"De :", "Envoyé :", "À :", "Objet :", // fr
		"Da:", "Inviato:", "A:", "Oggetto:", // it
		"Van:", "Verzonden:", "Aan:", "Onderwerp:", // nl
	})
	v.SetDefault("quote_dom_size_limit", 200_000)
	v.SetDefault("automated_sender_patterns", []string{
		"noreply", "no-reply", "no_reply", "donotreply",
		"notifications", "notification@", "mailer-daemon",
		"postmaster", "bounce", "newsletter", "marketing@",
	})
	v.SetDefault("internal_addresses", []string{})
	v.SetDefault("attachment_min_size", 500)
	v.SetDefault("attachment_noise_patterns", []string{
		"logo", "icon", "signature", "banner", "footer",
		"image00", "spacer", "pixel",
	})
	v.SetDefault("active_profile", "default")
	v.SetDefault("profiles", []map[string]any{
		{"id": "default", "name": "Me"},
	})
}

// Load reads configuration from path (optional; defaults apply when empty
// or when the file is absent).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("v.ReadInConfig failed: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("v.Unmarshal failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Errorf("config.Load failed on defaults: %w", err))
	}
	return cfg
}
