package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides, e.g. WOLFCREEK__UDOT__API_KEY
const EnvPrefix = "WOLFCREEK__"

// Section is the key under which the monitor's settings live in prefab.yaml
const Section = "wolfcreek"

// Load builds the configuration from defaults, the wolfcreek section of base
// (may be nil), a .env file if present and WOLFCREEK__ environment variables,
// in increasing order of precedence.
func Load(base *koanf.Koanf) (*Config, error) {
	cfg := DefaultConfig()

	if base != nil && base.Exists(Section) {
		if err := unmarshal(base.Cut(Section), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s section: %w", Section, err)
		}
	}

	// A missing .env file is normal outside development
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	if err := unmarshal(k, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment: %w", err)
	}

	for i := range cfg.Routes {
		if cfg.Routes[i].Color == "" {
			cfg.Routes[i].Color = DefaultRouteColor
		}
	}
	return cfg, nil
}

// unmarshal decodes k over cfg. Lists present in k replace the defaults
// rather than merging into them element by element.
func unmarshal(k *koanf.Koanf, cfg *Config) error {
	return k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           cfg,
			WeaklyTypedInput: true,
			ZeroFields:       true,
		},
	})
}

// envKey maps WOLFCREEK__UDOT__API_KEY to udot.api_key
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}
