// Package config reads the runtime configuration of the plugin from the
// environment.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Logging
	Log    bool   // write a log file per run
	LogDir string // where log files go

	// Mixing
	SectionFrames int // granularity of incremental mix updates, in frames
	RenderWorkers int     // phrases rendered in parallel
	MaxSeconds    float64 // phrases reaching past this time are not rendered

	// Notifications to the UI
	NotifyBuffer int     // notifications queued before new ones are dropped
	PositionHz   float64 // how often position changes are reported while playing
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Log:    envStr("VVVST_LOG", "") != "",
		LogDir: envStr("VVVST_LOG_DIR", defaultLogDir()),

		SectionFrames: envPositiveInt("VVVST_SECTION_FRAMES", 32768),
		RenderWorkers: envPositiveInt("VVVST_RENDER_WORKERS", runtime.GOMAXPROCS(0)),
		MaxSeconds:    envPositiveFloat("VVVST_MAX_SECONDS", 3600),

		NotifyBuffer: envPositiveInt("VVVST_NOTIFY_BUFFER", 1024),
		PositionHz:   envPositiveFloat("VVVST_POSITION_HZ", 10),
	}
}

// Default is the configuration Load returns when no variable is set.
func Default() Config {
	return Config{
		LogDir:        defaultLogDir(),
		SectionFrames: 32768,
		RenderWorkers: runtime.GOMAXPROCS(0),
		MaxSeconds:    3600,
		NotifyBuffer:  1024,
		PositionHz:    10,
	}
}

func defaultLogDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "voicevox_vst", "logs")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envPositiveInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envPositiveFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}
