// Copyright 2019 The Morning Consult, LLC or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//         https://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	homedir "github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

const (
	// EnvLogDir overrides the directory log files are written to.
	EnvLogDir = "PMP_LOG_DIR"

	// EnvLogLevel overrides the log level.
	EnvLogLevel = "PMP_LOG_LEVEL"

	defaultLogDir = "~/.docker-credential-pmp-login"
)

// Options configures the log writer and logger.
type Options struct {
	LogDir string
	Level  string
}

// LogWriter opens today's log file, creating the log directory if needed.
// The environment takes precedence over opts.
func LogWriter(opts *Options) (io.WriteCloser, error) {
	if opts == nil {
		opts = &Options{}
	}

	dir := opts.LogDir
	if dir == "" {
		dir = defaultLogDir
	}
	if v := os.Getenv(EnvLogDir); v != "" {
		dir = v
	}

	logDir, err := homedir.Expand(dir)
	if err != nil {
		return nil, xerrors.Errorf("error expanding logging directory %s: %w", dir, err)
	}

	if err = os.MkdirAll(logDir, 0750); err != nil {
		return nil, xerrors.Errorf("error creating directory %s: %w", logDir, err)
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("pmp-login_%s.log", time.Now().Format("2006-01-02")))

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, xerrors.Errorf("error opening/creating log file %s: %w", logFile, err)
	}
	return file, nil
}

// NewLogger creates a logger writing to w. The level defaults to error.
func NewLogger(w io.Writer, opts *Options) (hclog.Logger, error) {
	if opts == nil {
		opts = &Options{}
	}

	raw := opts.Level
	if v := os.Getenv(EnvLogLevel); v != "" {
		raw = v
	}

	level := hclog.Error
	if raw != "" {
		level = hclog.LevelFromString(strings.TrimSpace(raw))
		if level == hclog.NoLevel {
			return nil, xerrors.Errorf("unknown log level %q", raw)
		}
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "pmp-login",
		Level:  level,
		Output: w,
	}), nil
}
