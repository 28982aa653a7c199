package main

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// logger is shared by every node and filter of a run. It starts at INFO and
// is rebuilt once --log-level has been parsed.
var logger = newLogger(logrus.InfoLevel)

// allLogLevels is the --log-level help text, e.g. "PANIC|FATAL|...|TRACE".
var allLogLevels = logLevelNames()

func logLevelNames() string {
	names := make([]string, 0, len(logrus.AllLevels))
	for _, lvl := range logrus.AllLevels {
		names = append(names, strings.ToUpper(lvl.String()))
	}
	return strings.Join(names, "|")
}

func initLogger(lvl logrus.Level) {
	logger = newLogger(lvl)
}

func newLogger(lvl logrus.Level) *logrus.Logger {
	return &logrus.Logger{
		Out:   os.Stderr,
		Level: lvl,
		Hooks: make(logrus.LevelHooks),

		// Frame workers log concurrently; milliseconds keep their lines apart.
		Formatter: &logrus.TextFormatter{
			DisableLevelTruncation: true,
			PadLevelText:           true,

			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		},
	}
}
