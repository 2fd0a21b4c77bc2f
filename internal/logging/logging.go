package logging

import (
	"os"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// New returns the process-wide logger. The level is taken from LOG_LEVEL
// (debug, info, warn, error) and defaults to info.
func New() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)

		level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
		if err != nil {
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)

		logger.SetFormatter(&formatter.Formatter{
			TimestampFormat: "2006-01-02 15:04:05",
			HideKeys:        false,
			FieldsOrder:     []string{"component", "run_id"},
		})
	})

	return logger
}
