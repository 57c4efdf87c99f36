// Package logger builds the process logger: logrus with a text or JSON
// formatter, writing to stdout and optionally to a rotating file.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Options struct {
	Level  string // logrus level name; unknown values fall back to info
	Format string // "json" or "text"
	File   string // rotating log file; empty disables file output

	// Rotation settings for File. Zero values use 50 MB, 5 backups, 30 days.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Stdout defaults to os.Stdout; tests may replace it.
	Stdout io.Writer
}

// New returns a logger configured from opts.
func New(opts Options) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(opts.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	if opts.File != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		})
	}
	log.SetOutput(out)
	return log
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
