// Package config loads daemon configuration from the environment.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the daemon configuration.
// Values come from a .env file or the environment, with sane defaults.
type Config struct {
	// APIBaseURL is the streaming backend base URL
	// (audio at <base>/api/music/file/{id}, covers at <base>/api/music/cover/{id}).
	APIBaseURL string

	// DataDir is the root for durable daemon state
	DataDir string

	// DBPath is the sqlite database holding the queue store and settings
	DBPath string

	// CacheDir is the root of the content cache tree
	CacheDir string

	// SampleRate is the output sample rate in Hz
	SampleRate int

	// SessionName is the media-session identity exported on the bus
	SessionName string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	dataDir := getEnv("PLAYD_DATA_DIR", defaultDataDir())

	return &Config{
		APIBaseURL:  getEnv("PLAYD_API_BASE", "http://127.0.0.1:8080"),
		DataDir:     dataDir,
		DBPath:      getEnv("PLAYD_DB_PATH", filepath.Join(dataDir, "playd.db")),
		CacheDir:    getEnv("PLAYD_CACHE_DIR", filepath.Join(dataDir, "cache")),
		SampleRate:  getEnvInt("PLAYD_SAMPLE_RATE", 44100),
		SessionName: getEnv("PLAYD_SESSION_NAME", "playd"),
	}
}

// defaultDataDir resolves the per-user state directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to the working directory if the home dir is unknown
		return filepath.Join(".", "playd-data")
	}
	return filepath.Join(home, ".local", "share", "playd")
}
