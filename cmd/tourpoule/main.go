package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/interpolis/tourpoule/internal/app"
	"github.com/interpolis/tourpoule/internal/auth"
	"github.com/interpolis/tourpoule/internal/config"
	"github.com/interpolis/tourpoule/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	green  = "\033[32m"
	bold   = "\033[1m"
)

var (
	version = "dev"
)

const usage = `Tourpoule - fantasy cycling pool server

Usage:
  tourpoule [options]

Options:
  -port int       HTTP server port (default 8081, env PORT)
  -db string      SQLite path or Postgres URL (default "tourpoule.db", env DATABASE_URL)
  -dbtype string  sqlite or postgres (default "sqlite", env DATABASE_TYPE)
  -adminpw str    Admin password (auto-generated if not set, env ADMIN_PASSWORD)
  -loglevel str   Log level: debug, info, warn, error (default "info", env LOG_LEVEL)
  -version        Show version and exit
  -help           Show this help message

Environment:
  REDIS_URL                      Cache standings and stats in Redis
  PUBLIC_BASE_URL                Base of share links (LAN address if unset)
  OIDC_ISSUER, OIDC_CLIENT_ID,
  OIDC_CLIENT_SECRET,
  OIDC_REDIRECT_URL              Participant sign-in
  AVATAR_BUCKET, AVATAR_ENDPOINT,
  AVATAR_REGION,
  AVATAR_ACCESS_KEY_ID,
  AVATAR_SECRET_ACCESS_KEY,
  AVATAR_PUBLIC_BASE_URL         Team avatar storage (S3 compatible)

Signals:
  SIGUSR1                        Toggle HTTP request logging
  SIGUSR2                        Cycle log level (debug -> info -> warn -> error)

A .env file in the working directory is loaded first.
`

func printLogo() {
	logo := []string{
		"  _____                                  _      ",
		" |_   _|__  _   _ _ __ _ __   ___  _   _| | ___ ",
		"   | |/ _ \\| | | | '__| '_ \\ / _ \\| | | | |/ _ \\",
		"   | | (_) | |_| | |  | |_) | (_) | |_| | |  __/",
		"   |_|\\___/ \\__,_|_|  | .__/ \\___/ \\__,_|_|\\___|",
		"                      |_|                       ",
	}
	fmt.Println()
	for _, line := range logo {
		fmt.Printf("  %s%s%s\n", yellow, line, reset)
	}
	fmt.Printf("  %s%s%s\n\n", green, version, reset)
}

// cycleLogLevel cycles through debug -> info -> warn -> error
func cycleLogLevel(appLog logger.Logger) {
	var next string
	switch appLog.GetLevel().String() {
	case "DEBUG":
		next = "info"
	case "INFO":
		next = "warn"
	case "WARN":
		next = "error"
	default:
		next = "debug"
	}
	appLog.SetLevel(logger.ParseLevel(next))
	appLog.Warn("Log level changed", "level", next)
}

func toggleHTTPLogging(appLog logger.Logger) {
	if appLog.IsHTTPLoggingEnabled() {
		appLog.DisableHTTPLogging()
		appLog.Warn("HTTP request logging disabled")
		return
	}
	appLog.EnableHTTPLogging()
	appLog.Warn("HTTP request logging enabled")
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Parse(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
		os.Exit(2)
	}

	if cfg.ShowVersion {
		fmt.Printf("tourpoule %s\n", version)
		os.Exit(0)
	}

	printLogo()

	// Setup admin authentication
	password := cfg.AdminPassword
	generated := password == ""
	if generated {
		password = auth.GeneratePassword()
	}
	adminAuth := auth.New(password)

	appLog := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, appLog, cfg, adminAuth, app.Options{})
	if err != nil {
		log.Fatal("Failed to initialize application: ", err)
	}
	defer a.Close()

	if generated {
		fmt.Printf("%s%sAdmin password:%s %s\n\n", bold, green, reset, password)
	}

	go watchSignals(ctx, appLog)

	if err := a.Run(ctx, cfg.Addr()); err != nil {
		appLog.Error("Server stopped", "error", err)
		a.Close()
		os.Exit(1)
	}
}
