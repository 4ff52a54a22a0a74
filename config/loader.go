package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of the environment variables read by Load.
// DESIM_MAX_EVENTS sets max_events and DESIM_PARAM_RATE sets the parameter
// rate.
const EnvPrefix = "DESIM_"

const (
	paramEnvPrefix = "PARAM_"
	paramsKey      = "params"
	defaultEnvFile = ".env"
)

// Flags that select sources rather than hold settings.
var sourceFlags = map[string]bool{
	"config":   true,
	"env-file": true,
	"param":    true,
	"sweep":    true,
}

// Options tells Load where to look for settings.
type Options struct {
	// Model is the model name given on the command line.
	Model string

	// ConfigFile is an optional YAML file.
	ConfigFile string

	// EnvFile is an optional .env file. When empty, .env in the working
	// directory is read if it exists.
	EnvFile string

	// Flags are the command line flags. Only the flags set by the user are
	// used.
	Flags *pflag.FlagSet

	// ParamArgs are "name=value" parameter overrides.
	ParamArgs []string

	// SweepArgs are "name=v1,v2" parameter sweeps. Each combination of
	// values becomes one run.
	SweepArgs []string
}

// Load merges all the sources into a RunConfig. Later sources win:
// defaults, the YAML file, the .env file, the environment, flags, then
// parameter overrides and the model name.
func Load(opts Options) (*RunConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"log_level": DefaultLogLevel,
		"output":    DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if opts.ConfigFile != "" {
		if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf(
				"error reading config file %s: %w", opts.ConfigFile, err)
		}
	}

	if err := loadEnvFile(k, opts.EnvFile); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if err := loadFlags(k, opts.Flags); err != nil {
		return nil, err
	}

	overrides, err := parseParamArgs(opts.ParamArgs)
	if err != nil {
		return nil, err
	}

	sweeps, err := parseSweepArgs(opts.SweepArgs)
	if err != nil {
		return nil, err
	}

	if opts.Model != "" {
		overrides["model"] = opts.Model
	}

	if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}

	var cfg RunConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.HasUntil = k.Exists("until")
	cfg.Params = k.Cut(paramsKey).All()
	cfg.Sweeps = sweeps

	return &cfg, nil
}

// envKey maps DESIM_MAX_EVENTS to max_events and DESIM_PARAM_RATE to
// params.rate.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)

	if strings.HasPrefix(s, paramEnvPrefix) {
		return paramsKey + "." +
			strings.ToLower(strings.TrimPrefix(s, paramEnvPrefix))
	}

	return strings.ToLower(s)
}

func loadEnvFile(k *koanf.Koanf, path string) error {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}

		path = defaultEnvFile
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("error reading env file %s: %w", path, err)
	}

	m := make(map[string]any)
	for key, value := range values {
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}

		m[envKey(key)] = value
	}

	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}

	return nil
}

func loadFlags(k *koanf.Koanf, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	err := k.Load(posflag.ProviderWithFlag(flags, ".", k,
		func(f *pflag.Flag) (string, any) {
			if !f.Changed || sourceFlags[f.Name] {
				return "", nil
			}

			key := strings.ReplaceAll(f.Name, "-", "_")

			return key, posflag.FlagVal(flags, f)
		}), nil)
	if err != nil {
		return fmt.Errorf("failed to load flags: %w", err)
	}

	return nil
}

func parseParamArgs(args []string) (map[string]any, error) {
	m := make(map[string]any)

	for _, arg := range args {
		name, value, found := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)

		if !found || name == "" {
			return nil, errors.New(
				"parameter must be in the form name=value, got " + arg)
		}

		m[paramsKey+"."+name] = value
	}

	return m, nil
}
