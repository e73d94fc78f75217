// Package logging configures the structured run log: a rotating file for
// the full record and a stderr mirror for warnings.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log records go.
type Options struct {
	// File is the rotating log file. Empty disables file logging.
	File string
	// Debug lowers the level to debug and mirrors debug records to stderr.
	Debug bool
	// Stderr receives the mirrored records; os.Stderr when nil.
	Stderr io.Writer

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a logger. The returned closer releases the log file.
func New(opts Options) (*logrus.Logger, io.Closer) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	log.SetLevel(logrus.InfoLevel)
	if opts.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		log.SetOutput(rotating)
		closer = rotating
	} else {
		log.SetOutput(io.Discard)
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	levels := []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
	if opts.Debug {
		levels = append(levels, logrus.InfoLevel, logrus.DebugLevel)
	}
	log.AddHook(&writer.Hook{Writer: stderr, LogLevels: levels})
	return log, closer
}

// Discard returns a logger that drops every record, for tests and library
// callers that do not configure logging.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
