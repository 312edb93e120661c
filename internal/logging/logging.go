// Package logging builds the loggers used by the commands.
package logging

import (
	"io"

	"github.com/phuslu/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level string
	// File, if set, receives a copy of the output, rolled over by size.
	File string
}

func New(cfg Config) *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Level = log.ParseLevel(cfg.Level)

	console := &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}
	if cfg.File == "" {
		logger.Writer = console
		return &logger
	}

	logger.Writer = &log.MultiEntryWriter{
		console,
		&log.IOWriter{Writer: &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}},
	}
	return &logger
}

// OrSilent returns logger, or a silenced copy of the default logger if it is
// nil (which might be true in tests).
func OrSilent(logger *log.Logger) *log.Logger {
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	return logger
}
