// main.go - Remote Profile Session daemon.
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package main is the remoted daemon: a standalone process that drives
// one side (Host or Satellite) of a Remote Profile Session for
// development and interoperability testing, outside of the Desktop/
// Mobile applications that embed this package in production.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/core/log"

	"github.com/theAkito/simplex-chat/internal/remote/config"
	"github.com/theAkito/simplex-chat/internal/remote/metrics"
)

var remotedLog = logging.MustGetLogger("remoted")

func main() {
	var configFilePath string
	var role string

	flag.StringVar(&configFilePath, "config", "", "configuration file")
	flag.StringVar(&role, "role", "host", "role to run: host or satellite")
	flag.Parse()

	cfg := config.Default()
	if configFilePath != "" {
		loaded, err := config.FromFile(configFilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "remoted: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logBackend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "remoted: invalid logging config: %v\n", err)
		os.Exit(1)
	}
	remotedLog = logBackend.GetLogger("remoted")

	if cfg.Metrics.Enable {
		collector := metrics.NewCollector(nil)
		_ = collector
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			remotedLog.Noticef("metrics listening on %s", cfg.Metrics.Address)
			if err := http.ListenAndServe(cfg.Metrics.Address, mux); err != nil {
				remotedLog.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	daemon, err := newDaemon(role, cfg, logBackend)
	if err != nil {
		remotedLog.Criticalf("startup failed: %v", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	remotedLog.Noticef("remoted startup, role=%s", role)
	if err := daemon.Start(); err != nil {
		remotedLog.Criticalf("daemon failed to start: %v", err)
		os.Exit(1)
	}
	defer daemon.Stop()

	<-sigChan
	remotedLog.Notice("remoted shutdown")
}
