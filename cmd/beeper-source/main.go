// beeper-source tails the Beeper desktop client's local message cache and
// emits normalized messages from all bridged networks.
//
// Usage:
//
//	beeper-source watch [--db path] [--interval 1s] [--limit 50]
//	beeper-source thread <room-id> [--limit 50]
//	beeper-source room <room-id>
//	beeper-source check
//	beeper-source info
//	beeper-source paths
//	beeper-source version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/subjective-project/beeper-source/beeper"
	"github.com/subjective-project/beeper-source/internal/config"
	"github.com/subjective-project/beeper-source/internal/logger"
	"github.com/subjective-project/beeper-source/internal/poller"
	"github.com/subjective-project/beeper-source/internal/store"
)

var version = "0.1.0-dev"

const (
	sourceName        = "Beeper Database Listener"
	sourceDescription = "Real-time message listener for Beeper that monitors the local " +
		"SQLite database for new messages from WhatsApp, Telegram, LinkedIn, and other " +
		"connected networks. Bypasses Matrix bridge reliability issues by reading " +
		"directly from Beeper's cache."
)

func main() {
	var dbPath string
	var interval time.Duration
	var limit int

	rootCmd := &cobra.Command{
		Use:   "beeper-source",
		Short: "Normalized message feed from the Beeper local message store",
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to Beeper's index.db (default: session/env/config resolution)")

	loadConfig := func() *config.Config {
		session := config.Session{}
		if dbPath != "" {
			session[config.SessionKeyDatabasePath] = dbPath
		}
		cfg := config.Load(session)
		if interval > 0 {
			cfg.PollInterval = interval
		}
		if limit > 0 {
			cfg.QueryLimit = limit
		}
		return cfg
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(map[string]interface{}{
				"version": version,
				"go":      "1.23",
			})
		},
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Describe this data source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(map[string]interface{}{
				"name":        sourceName,
				"description": sourceDescription,
				"networks":    []beeper.Network{beeper.NetworkWhatsApp, beeper.NetworkTelegram, beeper.NetworkLinkedIn, beeper.NetworkMatrix},
			})
		},
	}

	pathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "Print resolved paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			return printJSON(map[string]interface{}{
				"store_path":  cfg.StorePath,
				"config_path": config.DefaultConfigPath(),
			})
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run the store connectivity self-test",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			reader := &store.Reader{Path: cfg.StorePath}
			count, err := reader.SelfTest()
			if err != nil {
				_ = printJSON(map[string]interface{}{
					"ok":    false,
					"store": cfg.StorePath,
					"error": err.Error(),
				})
				return fmt.Errorf("store self-test failed: %w", err)
			}
			return printJSON(map[string]interface{}{
				"ok":       true,
				"store":    cfg.StorePath,
				"messages": count,
			})
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the store and emit new messages as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runWatch(cfg)
		},
	}
	watchCmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default 1s)")
	watchCmd.Flags().IntVar(&limit, "limit", 0, "max rows per poll cycle (default 50)")

	threadCmd := &cobra.Command{
		Use:   "thread <room-id>",
		Short: "Dump the messages of one thread, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := logger.New(logger.ParseLevel(cfg.LogLevel))
			reader := &store.Reader{Path: cfg.StorePath, Log: log}
			return printJSON(reader.ThreadMessages(args[0], cfg.QueryLimit))
		},
	}
	threadCmd.Flags().IntVar(&limit, "limit", 0, "max rows (default 50)")

	roomCmd := &cobra.Command{
		Use:   "room <room-id>",
		Short: "Print the threads-table entry for one room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := logger.New(logger.ParseLevel(cfg.LogLevel))
			reader := &store.Reader{Path: cfg.StorePath, Log: log}
			info := reader.RoomInfo(args[0])
			if info == nil {
				return fmt.Errorf("room %s not found", args[0])
			}
			return printJSON(info)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(pathsCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(roomCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWatch(cfg *config.Config) error {
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	var report func(error)
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Release: version}); err != nil {
			log.Warn("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			report = func(err error) { sentry.CaptureException(err) }
		}
	}

	reader := &store.Reader{Path: cfg.StorePath, Log: log, Report: report}

	encoder := json.NewEncoder(os.Stdout)
	sink := func(msg beeper.Message) {
		if err := encoder.Encode(msg); err != nil {
			log.Error("failed to encode message", "event_id", msg.EventID, "error", err)
		}
	}

	p := poller.New(reader, sink, poller.Options{
		StorePath: cfg.StorePath,
		Interval:  cfg.PollInterval,
		Limit:     cfg.QueryLimit,
		Log:       log,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		if report != nil {
			report(err)
		}
		return err
	}
	return nil
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
