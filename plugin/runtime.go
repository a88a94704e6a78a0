package plugin

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/vvvst/vvvst/config"
)

// Runtime carries what a Plugin needs from its surroundings. It is built once
// per process and handed to every plugin instance.
type Runtime struct {
	Logger *slog.Logger
	Config config.Config
}

var (
	logOnce   sync.Once
	logShared *slog.Logger
	logErr    error
)

// InitLogging sets up the process-wide log file, if cfg enables logging, and
// returns the logger writing to it. Crashes are then also written to a .panic
// file beside it. Only the first call does anything; later
// calls return the same logger and error. With logging disabled, the logger
// discards everything.
func InitLogging(cfg config.Config) (*slog.Logger, error) {
	logOnce.Do(func() {
		logShared = discardLogger()
		if !cfg.Log {
			return
		}
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			logErr = fmt.Errorf("InitLogging failed: %w", err)
			return
		}
		base := filepath.Join(cfg.LogDir, strconv.FormatInt(time.Now().Unix(), 10))
		f, err := os.OpenFile(base+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logErr = fmt.Errorf("InitLogging failed: %w", err)
			return
		}
		logShared = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		logShared.Info("logging started", "file", base+".log")
		// fatal panics and runtime errors also go next to the log
		if err := crashOutput(base + ".panic"); err != nil {
			logShared.Warn("no crash output", "err", err)
		}
	})
	return logShared, logErr
}

// NewRuntime initializes logging and bundles it with cfg. A failure to open
// the log file is returned together with a usable Runtime that discards logs.
func NewRuntime(cfg config.Config) (Runtime, error) {
	logger, err := InitLogging(cfg)
	return Runtime{Logger: logger, Config: cfg}, err
}

func crashOutput(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return debug.SetCrashOutput(f, debug.CrashOptions{})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
