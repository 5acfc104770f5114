package logging

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger. Production logs are JSON for
// the collector; every other environment gets timestamped text.
func Setup(level, environment string) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(parsed)

	if environment == "production" {
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
		return nil
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return nil
}
