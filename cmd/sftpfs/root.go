package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/telebroad/sftpfs/config"
	"github.com/telebroad/sftpfs/provider"
	"github.com/telebroad/sftpfs/sftpfs"
)

var (
	flagConfig   string
	flagURI      string
	flagLogLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sftpfs",
	Short: "A client for remote file systems over SFTP",
	Long: `sftpfs mounts a remote SFTP endpoint as a virtual file system and
exposes it on the command line and over an HTTP gateway. Remote endpoints
are addressed by URI, such as sftp://user@host:22/home/user, and in-memory
endpoints such as mem://scratch/home are available for testing.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&flagURI, "uri", "u", "", "remote endpoint URI, overrides the config file")
	rootCmd.PersistentFlags().StringVarP(&flagLogLevel, "log-level", "l", "", "DEBUG, INFO, WARN or ERROR")

	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newTreeCommand())
	rootCmd.AddCommand(newStatCommand())
	rootCmd.AddCommand(newAttrCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newPutCommand())
	rootCmd.AddCommand(newCopyCommand())
	rootCmd.AddCommand(newMoveCommand())
	rootCmd.AddCommand(newRemoveCommand())
	rootCmd.AddCommand(newMkdirCommand())
	rootCmd.AddCommand(newLinkCommand())
	rootCmd.AddCommand(newServeCommand())
}

// loadConfig reads the config file and applies the command line overrides.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	if flagURI != "" {
		cfg.URI = flagURI
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openFS mounts the configured endpoint. The returned cleanup closes
// every file system the registry opened.
func openFS() (*sftpfs.FileSystem, *provider.Registry, *config.Config, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if cfg.URI == "" {
		return nil, nil, nil, nil, fmt.Errorf("no endpoint, set --uri or the config file")
	}
	registry := provider.NewRegistry()
	registry.SetLogger(logger)
	fsys, err := registry.Open(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	cleanup := func() {
		if err := registry.CloseAll(); err != nil {
			logger.Error("closing file systems", "error", err)
		}
	}
	return fsys, registry, cfg, cleanup, nil
}
