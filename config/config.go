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

package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/hashicorp/vault/sdk/helper/jsonutil"
	homedir "github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

const (
	// EnvAppSettingsDirectory is the environment variable naming the
	// directory which holds the configuration file.
	EnvAppSettingsDirectory = "APPSETTINGS_DIRECTORY"

	// FileName is the name of the configuration file inside the
	// application settings directory.
	FileName = "PMPAPIClient_config.json"
)

// ErrNoDirectory is returned when the application settings directory
// has not been provided.
var ErrNoDirectory = xerrors.Errorf("environment variable %s is not set", EnvAppSettingsDirectory)

// Config holds the settings used to talk to the password vault.
type Config struct {
	// AuthToken is the API token sent with every request.
	AuthToken string `json:"AuthToken"`

	// Host is the host (and optional port) of the vault server,
	// e.g. "pmp.example.com:7272".
	Host string `json:"Host"`

	// Prefix is prepended to every key before it is looked up
	// among the discovered account names.
	Prefix string `json:"Prefix"`
}

// rawConfig distinguishes absent and null fields from present ones.
type rawConfig struct {
	AuthToken *string `json:"AuthToken"`
	Host      *string `json:"Host"`
	Prefix    *string `json:"Prefix"`
}

// FilePath returns the path of the configuration file based on the
// APPSETTINGS_DIRECTORY environment variable.
func FilePath() (string, error) {
	dir := os.Getenv(EnvAppSettingsDirectory)
	if dir == "" {
		return "", ErrNoDirectory
	}
	return FilePathIn(dir)
}

// FilePathIn returns the path of the configuration file inside dir.
// A leading "~" is expanded to the home directory of the current user.
func FilePathIn(dir string) (string, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", xerrors.Errorf("error expanding directory %s: %w", dir, err)
	}
	return filepath.Join(expanded, FileName), nil
}

// ModTime returns the last modification time of the configuration file.
func ModTime(file string) (time.Time, error) {
	info, err := os.Stat(file)
	if err != nil {
		return time.Time{}, err
	}
	if info.IsDir() {
		return time.Time{}, xerrors.Errorf("%s is a directory, not a file", file)
	}
	return info.ModTime(), nil
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(file string) (*Config, error) {
	f, err := os.Open(file) // nolint: gosec
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := ParseConfig(f)
	if err != nil {
		return nil, xerrors.Errorf("error parsing configuration file %s: %w", file, err)
	}
	return cfg, nil
}

// ParseConfig decodes a JSON-encoded configuration. Every field is
// required; if any of them is missing, null or empty the returned error
// is a *multierror.Error holding one error per invalid field.
func ParseConfig(r io.Reader) (*Config, error) {
	var raw rawConfig
	if err := jsonutil.DecodeJSONFromReader(r, &raw); err != nil {
		return nil, xerrors.Errorf("error JSON-decoding configuration: %w", err)
	}

	var result *multierror.Error
	cfg := &Config{}

	fields := []struct {
		name string
		src  *string
		dst  *string
	}{
		{"AuthToken", raw.AuthToken, &cfg.AuthToken},
		{"Host", raw.Host, &cfg.Host},
		{"Prefix", raw.Prefix, &cfg.Prefix},
	}
	for _, f := range fields {
		switch {
		case f.src == nil:
			result = multierror.Append(result, xerrors.Errorf("field %q is required", f.name))
		case *f.src == "":
			result = multierror.Append(result, xerrors.Errorf("field %q is empty", f.name))
		default:
			*f.dst = *f.src
		}
	}

	if result != nil {
		result.ErrorFormat = listFormat
		return nil, result
	}
	return cfg, nil
}

// FieldErrors returns the individual validation errors carried by err,
// or err itself when it holds no field errors.
func FieldErrors(err error) []error {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if xerrors.As(err, &merr) {
		return merr.WrappedErrors()
	}
	return []error{err}
}

func listFormat(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return "configuration has the following errors:\n* " + strings.Join(msgs, "\n* ")
}
