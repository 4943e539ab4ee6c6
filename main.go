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

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/docker/docker-credential-helpers/credentials"
	"golang.org/x/xerrors"

	"github.com/morningconsult/docker-credential-pmp-login/client"
	"github.com/morningconsult/docker-credential-pmp-login/helper"
	"github.com/morningconsult/docker-credential-pmp-login/logging"
	"github.com/morningconsult/docker-credential-pmp-login/version"
)

const banner = "Docker Credential Helper for PMP Storage version %v, commit %v, built %v\n"

type options struct {
	version bool

	// timeout bounds a single request to the vault.
	timeout time.Duration

	// getTimeout bounds a whole credential lookup, which may reload the
	// configuration and rediscover every account first.
	getTimeout time.Duration
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("docker-credential-pmp-login", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout of a single request to the vault")
	fs.DurationVar(&opts.getTimeout, "get-timeout", helper.DefaultTimeout, "timeout of a whole credential lookup, including account discovery")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if opts.timeout <= 0 {
		return options{}, xerrors.Errorf("-timeout must be positive, got %v", opts.timeout)
	}
	if opts.getTimeout < opts.timeout {
		return options{}, xerrors.Errorf("-get-timeout (%v) must not be shorter than -timeout (%v)", opts.getTimeout, opts.timeout)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}

	// Exit safely when version is used
	if opts.version {
		fmt.Printf(banner, version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Open log writer
	logWriter, err := logging.LogWriter(nil)
	if err != nil {
		log.Fatalf("error creating log file: %v", err)
	}
	defer logWriter.Close()

	// Create logger
	logger, err := logging.NewLogger(logWriter, nil)
	if err != nil {
		log.Fatalf("error creating logger: %v", err)
	}

	// Create a new credential helper
	h := helper.New(helper.Options{
		Logger:  logger.Named("helper"),
		Timeout: opts.getTimeout,
		Client: client.New(client.Options{
			Logger:  logger.Named("client"),
			Timeout: opts.timeout,
		}),
	})
	credentials.Serve(h)
}
