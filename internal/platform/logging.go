package platform

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// SetupLogging routes the standard logger to stderr with full timestamps.
// -vv turns on per-event debug output.
func SetupLogging(verbosity int) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(LogLevel(verbosity))
}

func LogLevel(verbosity int) log.Level {
	if verbosity >= 2 {
		return log.DebugLevel
	}
	return log.InfoLevel
}
