// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is a configuration for the loggers.
type Config struct {
	File  *os.File
	Level Level
}

func DefaultConfig() *Config {
	return &Config{
		File:  nil,
		Level: InfoLevel,
	}
}

type Level int

// Levels start from 1 to avoid zero value in help printer.
const (
	ErrorLevel Level = 1 + iota
	InfoLevel
	DebugLevel
)

func ParseLevel(val string) (Level, error) {
	var l Level
	err := l.UnmarshalText([]byte(val))
	return l, err
}

func (l *Level) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "error":
		*l = ErrorLevel
	case "info":
		*l = InfoLevel
	case "debug":
		*l = DebugLevel
	default:
		return fmt.Errorf("invalid log level: %s", text)
	}
	return nil
}

func (l Level) String() string {
	if l < ErrorLevel || l > DebugLevel {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return [3]string{"error", "info", "debug"}[l-1]
}

// OpenFile opens a log file for appending, the parent directory is created if needed.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirMode); err != nil {
		return nil, err
	}
	return os.OpenFile(path, DefaultFileFlags, DefaultFileMode)
}
