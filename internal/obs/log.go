package obs

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	loggerOnce sync.Once
	logger     zerolog.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *zerolog.Logger {
	loggerOnce.Do(func() {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	})
	return &logger
}

// SetLevel applies the configured log level to the global logger. Unknown
// levels fall back to info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
