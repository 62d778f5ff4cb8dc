// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the content-engine CLI and server.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/internal/secrets"
	"github.com/pdiddy/content-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the resolved configuration, filled before any subcommand runs.
	cfg types.Config

	logger = zap.NewNop()
)

// rootCmd is the base command for the content-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "content-engine",
	Short: "Autonomous article and image generation",
	Long: `content-engine turns a topic into a publishable article through a
research, draft, humanize and SEO pipeline, and keeps published articles
supplied with hero images and infographics.

Run "content-engine serve" for the HTTP API and the image scheduler, or use
the subcommands to drive single operations from the shell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("decoding config: %w", err)
		}

		l, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(cfg.SecretsDir, logger)
		if err != nil {
			return err
		}
		if applied := secrets.Apply(&cfg.Backends, s); len(applied) > 0 {
			logger.Debug("backend keys loaded from secrets", zap.Strings("kinds", applied))
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./content-engine.yaml or ~/.config/content-engine/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("content-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "content-engine"))
		}
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("CONTENT_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every default. Registering a key also makes it
// visible to AutomaticEnv during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("store.driver", string(types.DriverSQLite))
	v.SetDefault("store.dsn", "content-engine.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 15*time.Minute)

	backends := map[string]struct {
		provider    types.Provider
		model       string
		temperature float64
		grounding   bool
	}{
		"research": {types.ProviderGemini, "gemini-2.5-flash", 0.2, true},
		"draft":    {types.ProviderOpenAI, "gpt-4o-mini", 0.7, false},
		"humanize": {types.ProviderAnthropic, "claude-sonnet-4-5", 0.8, false},
		"seo":      {types.ProviderGemini, "gemini-2.5-flash", 0.3, false},
		"image":    {types.ProviderGemini, "imagen-4.0-generate-001", 0, false},
	}
	for kind, b := range backends {
		prefix := "backends." + kind + "."
		v.SetDefault(prefix+"provider", string(b.provider))
		v.SetDefault(prefix+"model", b.model)
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"temperature", b.temperature)
		v.SetDefault(prefix+"max_output_tokens", 8192)
		v.SetDefault(prefix+"grounding", b.grounding)
		v.SetDefault(prefix+"timeout", 2*time.Minute)
		v.SetDefault(prefix+"max_attempts", 3)
		v.SetDefault(prefix+"rate_per_second", 0.0)
		v.SetDefault(prefix+"burst", 1)
	}

	v.SetDefault("pipeline.banned_phrases", []string{
		"delve",
		"game-changing",
		"in today's fast-paced world",
		"it's important to note that",
		"navigate the complexities",
		"unlock the power of",
	})
	v.SetDefault("pipeline.banned_phrases_file", "")
	v.SetDefault("pipeline.corrective_prompt", "")
	v.SetDefault("pipeline.auto_publish", false)

	v.SetDefault("images.assets_dir", "assets")
	v.SetDefault("images.retention", time.Duration(0))
	v.SetDefault("images.concurrency", 3)
	v.SetDefault("images.hero_aspect_ratio", "16:9")
	v.SetDefault("images.infographic_aspect_ratio", "3:4")
	v.SetDefault("images.supporting_aspect_ratio", "4:3")

	v.SetDefault("scheduler.interval", 10*time.Minute)
	v.SetDefault("scheduler.autostart", false)
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.cycle_timeout", 30*time.Minute)
	v.SetDefault("scheduler.batch_size", 50)

	v.SetDefault("secrets_dir", ".secrets")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
