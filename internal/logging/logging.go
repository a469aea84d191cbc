// Package logging configures the shared logrus logger for stylecopilot.
// Console output stays quiet by default; a rotating log file can be enabled
// from configuration for debugging.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger setup, populated from config.
type Options struct {
	Level      string // DEBUG | INFO | WARN | ERROR
	File       string // optional path; empty keeps stderr only
	MaxSizeMB  int
	MaxBackups int
}

var logger = logrus.New()

// Setup applies the configured level and output. Safe to call more than once;
// the last call wins.
func Setup(opts Options) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	var out io.Writer = os.Stderr
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
		}
	}
	logger.SetOutput(out)
}

// Named returns an entry tagged with the originating component.
func Named(component string) *logrus.Entry {
	return logger.WithField("component", component)
}
