// Package main is the entry point for the omnibrain daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/omnibrain/omnibrain/internal/config"
	"github.com/omnibrain/omnibrain/internal/daemon"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "start":
			runStart(logger, *configPath)
		case "version":
			fmt.Println("omnibrain daemon")
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	runStart(logger, *configPath)
}

func runStart(logger *slog.Logger, configPath string) {
	cfgPath, err := config.FindConfig(configPath)
	var cfg *config.Config
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			logger.Error("failed to load config", "path", cfgPath, "error", err)
			os.Exit(1)
		}
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	if !cfg.Providers.Configured() {
		logger.Warn("no LLM provider API keys configured — run with ANTHROPIC_API_KEY / OPENAI_API_KEY / DEEPSEEK_API_KEY set, or edit config.yaml")
	}

	d := daemon.New(cfg, logger)
	if err := d.Run(context.Background()); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}
