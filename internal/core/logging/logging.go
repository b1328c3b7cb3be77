// Package logging builds the daemon's logrus logger.
//
// Foreground runs log to the console. Background runs log to a size-rotated
// file. Text output carries a full timestamp, e.g.
//
//	time="2024-05-01 12:00:00" level=info msg="Tickets created: 2"
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TimestampFormat is used by the text formatter.
const TimestampFormat = "2006-01-02 15:04:05"

// Options selects level, format and sink.
type Options struct {
	Level  string
	Format string

	// File is the log file for background runs. Empty logs to Console only.
	File       string
	MaxSizeMB  int
	MaxBackups int

	// Console, when non-nil, also receives every entry.
	Console io.Writer
}

// New creates a logger from opts. The returned closer releases the log file.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	log := logrus.New()
	log.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			DisableColors:   opts.File != "",
			FullTimestamp:   true,
			TimestampFormat: TimestampFormat,
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: TimestampFormat})
	default:
		return nil, nil, fmt.Errorf("unsupported log format %q (expected text or json)", opts.Format)
	}

	var closer io.Closer = nopCloser{}
	var writers []io.Writer

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		writers = append(writers, rotator)
		closer = rotator
	}
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}

	switch len(writers) {
	case 0:
		log.SetOutput(os.Stderr)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}

	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
