// Package config loads replayarc settings from the environment, with an
// optional .env file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultWorkers     = 4
	DefaultMaxRetries  = 3
	DefaultBackoffBase = time.Second
	DefaultEngine      = "http"
	DefaultCanvasBase  = "https://oc.sjtu.edu.cn"
	DefaultVodBase     = "https://v.sjtu.edu.cn"
)

// Config holds the runtime settings for a pipeline run.
type Config struct {
	CanvasBase    string
	VodBase       string
	DownloadDir   string
	LedgerPath    string
	CookiePath    string
	Engine        string // "http" or "aria2"
	Workers       int
	MaxRetries    int
	BackoffBase   time.Duration
	ScreenChannel bool // download the screen recording instead of the camera
}

// Load reads an optional .env file and builds the configuration from the
// environment with defaults.
func Load() *Config {
	// Missing .env is fine; system env and defaults apply.
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "replayarc")

	return &Config{
		CanvasBase:    getEnv("REPLAYARC_CANVAS_URL", DefaultCanvasBase),
		VodBase:       getEnv("REPLAYARC_VOD_URL", DefaultVodBase),
		DownloadDir:   getEnv("REPLAYARC_DOWNLOAD_DIR", filepath.Join(dataDir, "archive")),
		LedgerPath:    getEnv("REPLAYARC_LEDGER_PATH", filepath.Join(dataDir, "ledger.db")),
		CookiePath:    getEnv("REPLAYARC_COOKIE_PATH", filepath.Join(home, ".config", "replayarc", "cookies.json")),
		Engine:        getEnv("REPLAYARC_ENGINE", DefaultEngine),
		Workers:       getEnvInt("REPLAYARC_WORKERS", DefaultWorkers),
		MaxRetries:    getEnvInt("REPLAYARC_MAX_RETRIES", DefaultMaxRetries),
		BackoffBase:   getEnvDuration("REPLAYARC_BACKOFF_BASE", DefaultBackoffBase),
		ScreenChannel: getEnvBool("REPLAYARC_SCREEN_CHANNEL", false),
	}
}

// getEnv returns the value of key, or fallback if unset or empty.
func getEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// getEnvInt returns the integer value of key, or fallback if unset or invalid.
func getEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvBool returns the boolean value of key, or fallback if unset or invalid.
func getEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration returns the duration value of key, or fallback if unset or
// invalid.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}
