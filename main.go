// Package main provides the entry point for the changdang CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/changdang/companion/internal/config"
	"github.com/changdang/companion/internal/logging"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	logLevel   string

	// cfg is loaded before any subcommand runs.
	cfg config.Config
	// closeLog releases the debug log file, if one was opened.
	closeLog = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "changdang",
		Short: "Browse Changdang heritage content and play its audio guides",
		Long: paragraph(
			fmt.Sprintf("\nBrowse the Changdang %s and play audio guides from the terminal.", keyword("sites and terms")),
		),
		SilenceErrors:     false,
		SilenceUsage:      true,
		TraverseChildren:  true,
		PersistentPreRunE: setup,
	}
)

// setup reads the configuration and initializes logging.
func setup(*cobra.Command, []string) error {
	if err := config.Prepare(viper.GetViper(), configFile); err != nil {
		return err
	}
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}

	var err error
	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	closer, err := setupLog(cfg)
	if err != nil {
		return err
	}
	closeLog = closer
	return nil
}

// watchConfig re-applies the log level whenever the config file changes.
// Only long-running commands call it.
func watchConfig() {
	if viper.GetViper().ConfigFileUsed() == "" {
		return
	}
	config.Watch(viper.GetViper(), func(next config.Config) {
		if err := logging.SetLevel(next.Log.Level); err != nil {
			log.Warn("ignoring log level", "err", err)
			return
		}
		log.Debug("config reloaded", "level", next.Log.Level)
	}, func(err error) {
		log.Warn("config reload failed", "err", err)
	})
}

// setupLog applies the log settings from cfg and the CHANGDANG_* debug
// environment.
func setupLog(cfg config.Config) (func() error, error) {
	e, err := config.ParseEnv()
	if err != nil {
		return nil, err
	}

	opts := logging.Options{
		Level: cfg.Log.Level,
		Debug: e.Debug,
		Trace: e.Trace,
		File:  e.LogFile,
	}
	if opts.File == "" && (cfg.Log.DebugFile || e.Debug || e.Trace) {
		dir, err := config.DataDir()
		if err != nil {
			return nil, err
		}
		opts.File = filepath.Join(dir, config.AppName+".log")
	}
	return logging.Setup(opts)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_ = closeLog()
		os.Exit(1)
	}
	_ = closeLog()
}

func init() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default changdang.yml in the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Config bindings
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(configCmd, manCmd, contentCmd, playCmd)
}
