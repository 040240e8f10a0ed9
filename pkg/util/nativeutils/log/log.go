// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package log wires up the process-wide logrus logger: a prefixed text
// formatter, color output when stdout is a real terminal, and optional
// rotation to a file via lumberjack. Every package-level logger elsewhere
// in this module (logger.WithFields(logger.Fields{"prefix": "mempool"}))
// writes through whatever logrus.SetOutput this package configures.
package log

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	logger "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configure the logging setup.
type Options struct {
	// Level is the minimum logged level ("trace", "debug", "info", ...).
	Level string
	// FilePath, if set, rotates logs to disk via lumberjack in addition
	// to stdout.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup installs a prefixed formatter and configures output/level on the
// standard logrus logger.
func Setup(opts Options) error {
	logger.SetFormatter(&prefixed.TextFormatter{
		ForceColors:     isatty.IsTerminal(os.Stdout.Fd()),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	level, err := logger.ParseLevel(orDefault(opts.Level, "info"))
	if err != nil {
		return err
	}

	logger.SetLevel(level)

	var out io.Writer = colorable.NewColorableStdout()

	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefaultInt(opts.MaxSizeMB, 50),
			MaxBackups: orDefaultInt(opts.MaxBackups, 3),
			MaxAge:     orDefaultInt(opts.MaxAgeDays, 28),
		}
		out = io.MultiWriter(out, rotator)
	}

	logger.SetOutput(out)

	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}

	return v
}
