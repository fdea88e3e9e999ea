// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the patent-scout CLI.
// Implements: prd009-strategy through prd016-serve (CLI surface).
// See docs/ARCHITECTURE § Pipeline Interface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/patent-scout/internal/secrets"
	"github.com/pdiddy/patent-scout/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is the process-wide structured logger.
var logger zerolog.Logger

// rootCmd is the base command for the patent-scout CLI.
var rootCmd = &cobra.Command{
	Use:   "patent-scout",
	Short: "Multi-source pharmaceutical patent aggregation",
	Long: `patent-scout aggregates patent filings for a pharmaceutical molecule
across the EPO registry, public patent search, and the national patent
office portal. It expands the molecule into search terms, schedules the
queries within each source's rate limits, merges the hits into canonical
records, and infers national filings still pending publication.

Each operation is a subcommand: search runs one aggregation job, audit
compares results against a reference set, archive manages stored results,
and serve exposes the pipeline over HTTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		level := zerolog.InfoLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().Timestamp().Logger()
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./patent-scout.yaml or ~/.config/patent-scout/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("patent-scout")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "patent-scout"))
		}
	}

	viper.SetEnvPrefix("PATENT_SCOUT")
	viper.AutomaticEnv()

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setConfigDefaults() {
	viper.SetDefault("strategy.max_terms", 50)
	viper.SetDefault("strategy.target_country", "BR")

	viper.SetDefault("registry.enabled", true)
	viper.SetDefault("registry.timeout", 60*time.Second)
	viper.SetDefault("public_search.enabled", true)
	viper.SetDefault("public_search.timeout", 60*time.Second)
	viper.SetDefault("office.enabled", true)
	viper.SetDefault("office.timeout", 60*time.Second)
	viper.SetDefault("office.mandatory", false)

	viper.SetDefault("session.max_login_attempts", 3)
	viper.SetDefault("session.login_backoff", 2*time.Second)
	viper.SetDefault("session.min_login_interval", time.Second)

	viper.SetDefault("scheduler.workers", 4)
	viper.SetDefault("scheduler.batch_size", 7)
	viper.SetDefault("scheduler.query_delay", 3*time.Second)
	viper.SetDefault("scheduler.job_timeout", 30*time.Minute)

	viper.SetDefault("inference.window_lower_months", 6)
	viper.SetDefault("inference.window_upper_months", 18)

	viper.SetDefault("audit.reference_dir", "")
	viper.SetDefault("audit.quality_low_below", 50.0)
	viper.SetDefault("audit.quality_high_above", 80.0)

	viper.SetDefault("translation.target_language", "pt")
	viper.SetDefault("translation.timeout", 30*time.Second)

	viper.SetDefault("archive.dir", "archive")
	viper.SetDefault("serve.addr", ":8080")
}

// pipelineConfig assembles the full pipeline configuration from the
// config file, environment, and secrets directory.
func pipelineConfig() types.PipelineConfig {
	userAgent := "patent-scout/0.1"

	cfg := types.PipelineConfig{
		Strategy: types.StrategyConfig{
			MaxTerms:       viper.GetInt("strategy.max_terms"),
			TargetCountry:  viper.GetString("strategy.target_country"),
			ApplicantHints: viper.GetStringSlice("strategy.applicant_hints"),
		},
		Registry: types.RegistryConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("registry.timeout"),
				UserAgent: userAgent,
			},
			Enabled: viper.GetBool("registry.enabled"),
		},
		PublicSearch: types.PublicSearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("public_search.timeout"),
				UserAgent: userAgent,
			},
			Enabled: viper.GetBool("public_search.enabled"),
		},
		Office: types.OfficeConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("office.timeout"),
				UserAgent: userAgent,
			},
			Enabled:   viper.GetBool("office.enabled"),
			Mandatory: viper.GetBool("office.mandatory"),
		},
		Session: types.SessionConfig{
			MaxLoginAttempts: viper.GetInt("session.max_login_attempts"),
			LoginBackoff:     viper.GetDuration("session.login_backoff"),
			MinLoginInterval: viper.GetDuration("session.min_login_interval"),
		},
		Scheduler: types.SchedulerConfig{
			Workers:    viper.GetInt("scheduler.workers"),
			BatchSize:  viper.GetInt("scheduler.batch_size"),
			QueryDelay: viper.GetDuration("scheduler.query_delay"),
			JobTimeout: viper.GetDuration("scheduler.job_timeout"),
		},
		Inference: types.InferenceConfig{
			WindowLowerMonths: viper.GetInt("inference.window_lower_months"),
			WindowUpperMonths: viper.GetInt("inference.window_upper_months"),
		},
		Audit: types.AuditConfig{
			ReferenceDir:     viper.GetString("audit.reference_dir"),
			QualityLowBelow:  viper.GetFloat64("audit.quality_low_below"),
			QualityHighAbove: viper.GetFloat64("audit.quality_high_above"),
		},
		Translation: types.TranslationConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("translation.timeout"),
				UserAgent: userAgent,
			},
			TargetLanguage: viper.GetString("translation.target_language"),
		},
		Archive: types.ArchiveConfig{
			Dir: viper.GetString("archive.dir"),
		},
		Serve: types.ServeConfig{
			Addr: viper.GetString("serve.addr"),
		},
	}

	secrets.Apply(&cfg, loadedSecrets)

	// Sources that need credentials cannot run without them.
	if cfg.Registry.Key == "" || cfg.Registry.Secret == "" {
		cfg.Registry.Enabled = false
	}
	if cfg.Office.Username == "" || cfg.Office.Password == "" {
		cfg.Office.Enabled = false
	}

	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
