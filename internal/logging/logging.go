// internal/logging/logging.go
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const timestampLayout = "2006-01-02 15:04:05 MST"

// Config selects level and output format.
type Config struct {
	Level  string
	Format string // "text" or "json"
	Output io.Writer
}

// New builds a logger whose timestamps render in loc.
// A nil loc keeps the process zone.
func New(cfg Config, loc *time.Location) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampLayout,
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	if cfg.Output != nil {
		logger.SetOutput(cfg.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	if loc != nil {
		logger.AddHook(zoneHook{loc: loc})
	}
	return logger, nil
}

// zoneHook renders entry times in the configured zone.
type zoneHook struct {
	loc *time.Location
}

func (h zoneHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h zoneHook) Fire(e *logrus.Entry) error {
	e.Time = e.Time.In(h.loc)
	return nil
}
