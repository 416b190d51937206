package config

import (
	// Go Internal Packages
	"fmt"
	"os"
	"strings"

	// External Packages
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
)

// EnvPrefix marks environment overrides. TXP_MONGO__URI sets mongo.uri.
const EnvPrefix = "TXP_"

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Load layers the defaults, the YAML file at path (skipped when it does not
// exist) and the environment, in that order.
func Load(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(DefaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return k, nil
}

// Parse unmarshals and validates k.
func Parse(k *koanf.Koanf) (Config, error) {
	var conf Config
	if err := k.Unmarshal("", &conf); err != nil {
		return Config{}, err
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// WatchRules calls onChange with the rules section each time the file at path
// changes and still parses into a valid configuration. Invalid edits go to
// onError and leave the previous rules in force.
func WatchRules(path string, onChange func(Rules), onError func(error)) error {
	fp := file.Provider(path)
	return fp.Watch(func(_ interface{}, err error) {
		if err != nil {
			onError(err)
			return
		}
		k, err := Load(path)
		if err != nil {
			onError(err)
			return
		}
		conf, err := Parse(k)
		if err != nil {
			onError(err)
			return
		}
		onChange(conf.Rules)
	})
}
