package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// L is the shared application logger. Init must be called once at startup;
// before that it behaves as a default text logger at info level.
var L = logrus.New()

// Init configures the shared logger from application settings.
// Production output is JSON; anything else stays human-readable text.
func Init(level, environment string) {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	L.SetLevel(logLevel)
	L.SetOutput(os.Stdout)

	if environment == "production" {
		L.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		L.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// WithFields creates a new logger entry with the specified fields
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return L.WithFields(fields)
}

// WithError creates a new logger entry with an error field
func WithError(err error) *logrus.Entry {
	return L.WithError(err)
}
