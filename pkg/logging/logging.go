// Package logging configures the process-wide logrus logger
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
)

// stderr receives the log unless a file is configured, and errors in any case
var stderr io.Writer = os.Stderr

// Levels are the accepted values for Configure
var Levels = []string{"trace", "debug", "info", "warn", "error"}

// Configure sets the log level and, if file is not empty, sends the log to
// that file instead of stderr. Errors are written to stderr either way.
// Calling it again simply reconfigures the logger.
func Configure(level, file string) error {
	lvl, err := xlatLogLevel(level)
	if err != nil {
		return err
	}

	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: true,
	})

	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))

	if file == "" {
		log.SetOutput(stderr)
		return nil
	}

	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error opening log file %s: %w", file, err)
	}

	log.SetOutput(f)

	// errors go to stderr as well
	log.AddHook(&writer.Hook{
		Writer: stderr,
		LogLevels: []log.Level{
			log.PanicLevel,
			log.FatalLevel,
			log.ErrorLevel,
		},
	})

	return nil
}

// xlatLogLevel translates the passed level string to a logrus level
func xlatLogLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	}

	return log.InfoLevel, fmt.Errorf("unknown log level %q, must be one of %s", level, strings.Join(Levels, ", "))
}
