// Package config is the shared flag/env configuration layer for both
// binaries (cmd/dicewars-server and cmd/dicewars-admin), grounded on
// Seednode-partybox's Config/newCmd pattern: a plain struct filled by
// pflag, with viper supplying environment-variable fallbacks under one
// prefix.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment-variable prefix both binaries bind their
// flags under (e.g. DICEWARS_PORT).
const EnvPrefix = "DICEWARS"

// Config holds every setting either binary needs. Not every field is
// relevant to every command; cmd/dicewars-admin's cleanup-stale-games
// subcommand only uses DatabaseURL and StaleAfter, though its Validate
// call also checks Port.
type Config struct {
	Bind               string
	Port               int
	DatabaseURL        string
	StaleAfter         time.Duration
	JanitorInterval    time.Duration
	WaveBroadcastDelay time.Duration
	WaveApplyDelay     time.Duration
	Verbose            bool
}

// Validate checks invariants pflag itself can't express.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("--database-url is required (env: %s_DATABASE_URL)", EnvPrefix)
	}
	return nil
}

// BindFlags registers every shared flag against fs and wires viper so any
// flag left at its default is overridden by its DICEWARS_* environment
// variable, the same VisitAll fallback dance as the teacher's newCmd.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: DICEWARS_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: DICEWARS_PORT)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "Postgres connection string (env: DICEWARS_DATABASE_URL)")
	fs.DurationVar(&cfg.StaleAfter, "stale-after", time.Hour, "age at which a waiting room is considered abandoned (env: DICEWARS_STALE_AFTER)")
	fs.DurationVar(&cfg.JanitorInterval, "janitor-interval", time.Minute, "how often the janitor sweeps for stale rooms (env: DICEWARS_JANITOR_INTERVAL)")
	fs.DurationVar(&cfg.WaveBroadcastDelay, "wave-broadcast-delay", 250*time.Millisecond, "pacing delay after each explosion wave's pending frame (env: DICEWARS_WAVE_BROADCAST_DELAY)")
	fs.DurationVar(&cfg.WaveApplyDelay, "wave-apply-delay", 100*time.Millisecond, "pacing delay after each explosion wave's applied frame (env: DICEWARS_WAVE_APPLY_DELAY)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: DICEWARS_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
