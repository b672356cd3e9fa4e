// Package log configures the process wide zerolog logger. Components derive
// their own loggers from the global one with module and chain context.
package log

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup applies the log level and output format to the global logger. Level
// accepts the zerolog level names; pretty switches from JSON to the human
// console writer.
func Setup(level string, pretty bool) error {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("fail to parse log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(parsed)
	zerolog.DurationFieldUnit = time.Millisecond
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return nil
}
