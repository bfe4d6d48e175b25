// Package config reads the server configuration from flags, the
// environment and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort         = 8081
	DefaultDatabaseURL  = "tourpoule.db"
	DefaultDatabaseType = "sqlite"
	DefaultCacheTTL     = 5 * time.Minute
	DefaultLockTimeout  = 5 * time.Second
)

// OIDC holds the participant sign-in settings
type OIDC struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether participant sign-in is configured
func (o OIDC) Enabled() bool {
	return o.Issuer != "" && o.ClientID != ""
}

// Avatars holds the S3-compatible bucket settings
type Avatars struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// Enabled reports whether avatar uploads go to a bucket
func (a Avatars) Enabled() bool {
	return a.Bucket != ""
}

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	AdminPassword string
	LogLevel      string
	LogFormat     string
	RedisURL      string
	CacheTTL      time.Duration
	LockTimeout   time.Duration
	PublicBaseURL string
	OIDC          OIDC
	Avatars       Avatars
	ShowVersion   bool
}

// Addr is the listen address for the HTTP server
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LoadDotEnv loads path into the environment. A missing file is not an
// error; variables already set win.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Parse reads flags from args and fills the rest from the environment
func Parse(args []string) (Config, error) {
	var cfg Config

	flags := flag.NewFlagSet("tourpoule", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.IntVar(&cfg.Port, "port", 0, "HTTP server port")
	flags.StringVar(&cfg.DatabaseURL, "db", "", "Database path (sqlite) or URL (postgres)")
	flags.StringVar(&cfg.DatabaseType, "dbtype", "", "Database type (sqlite or postgres)")
	flags.StringVar(&cfg.AdminPassword, "adminpw", "", "Admin password (prefer env)")
	flags.StringVar(&cfg.LogLevel, "loglevel", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil || port < 1 || port > 65535 {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = DefaultPort
		}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("port %d out of range", cfg.Port)
	}

	cfg.DatabaseURL = firstNonEmpty(cfg.DatabaseURL, os.Getenv("DATABASE_URL"), DefaultDatabaseURL)
	cfg.DatabaseType = strings.ToLower(firstNonEmpty(cfg.DatabaseType, os.Getenv("DATABASE_TYPE"), DefaultDatabaseType))
	cfg.AdminPassword = firstNonEmpty(cfg.AdminPassword, os.Getenv("ADMIN_PASSWORD"))
	cfg.LogLevel = firstNonEmpty(cfg.LogLevel, os.Getenv("LOG_LEVEL"), "info")
	cfg.LogFormat = firstNonEmpty(os.Getenv("LOG_FORMAT"), "text")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.PublicBaseURL = strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")

	var err error
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", DefaultCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = durationEnv("ROSTER_LOCK_TIMEOUT", DefaultLockTimeout); err != nil {
		return Config{}, err
	}

	cfg.OIDC = OIDC{
		Issuer:       os.Getenv("OIDC_ISSUER"),
		ClientID:     os.Getenv("OIDC_CLIENT_ID"),
		ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
	}
	if cfg.OIDC.Issuer != "" && cfg.OIDC.ClientID == "" {
		return Config{}, errors.New("OIDC_CLIENT_ID required when OIDC_ISSUER is set")
	}

	cfg.Avatars = Avatars{
		Bucket:          os.Getenv("AVATAR_BUCKET"),
		Endpoint:        os.Getenv("AVATAR_ENDPOINT"),
		Region:          os.Getenv("AVATAR_REGION"),
		AccessKeyID:     os.Getenv("AVATAR_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AVATAR_SECRET_ACCESS_KEY"),
		PublicBaseURL:   os.Getenv("AVATAR_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s env variable %q", key, v)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
