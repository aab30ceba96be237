package app

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the root JSON logger. Unknown levels fall back to info.
func NewLogger(level string, out io.Writer) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log.WithField("service", "quizbank")
}
