// config.go - Remote Profile Session configuration.
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

// Package config provides Remote Profile Session configuration utilities.
package config

import (
	"errors"
	"io/ioutil"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/theAkito/simplex-chat/internal/remote/constants"
)

// Transport holds the secure duplex transport's tunable parameters.
type Transport struct {
	// ListenAddress is used by whichever peer plays server for a given
	// discovery mode (Section 4.2).
	ListenAddress string
	MaxFrameSize  int
	UseTLS        bool
}

// Pairing holds discovery/handshake tunables.
type Pairing struct {
	TokenTTLSeconds   int64
	ReplayWindowHours int64
}

// Logging mirrors the teacher's per-daemon logging knobs.
type Logging struct {
	File    string
	Level   string
	Disable bool
}

// Metrics controls the optional Prometheus exporter.
type Metrics struct {
	Enable  bool
	Address string
}

// Config is the top-level Remote Profile Session configuration.
type Config struct {
	DataDir    string
	DatabaseFile string
	Transport  Transport
	Pairing    Pairing
	Logging    Logging
	Metrics    Metrics
}

// Default returns a Config populated with the Section 2/3 defaults.
func Default() *Config {
	return &Config{
		DataDir:      ".",
		DatabaseFile: "remote_profiles.db",
		Transport: Transport{
			ListenAddress: "0.0.0.0:8765",
			MaxFrameSize:  constants.DefaultMaxFrameSize,
			UseTLS:        false,
		},
		Pairing: Pairing{
			TokenTTLSeconds:   int64(constants.PairingTokenTTL / time.Second),
			ReplayWindowHours: int64(constants.PairingReplayWindow / time.Hour),
		},
		Logging: Logging{
			Level: "INFO",
		},
		Metrics: Metrics{
			Enable:  false,
			Address: "127.0.0.1:9090",
		},
	}
}

// Validate checks the invariants FromFile cannot express in TOML alone.
func (c *Config) Validate() error {
	if c.Transport.MaxFrameSize < constants.MinFrameSize {
		return errors.New("config: transport.MaxFrameSize below the 256 KiB floor")
	}
	if c.DatabaseFile == "" {
		return errors.New("config: DatabaseFile must not be empty")
	}
	return nil
}

// FromFile loads a Config from a TOML file, starting from Default() so
// unset fields keep sane values.
func FromFile(fileName string) (*Config, error) {
	cfg := Default()
	fileData, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(fileData, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TokenTTL returns the configured pairing token lifetime as a Duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Pairing.TokenTTLSeconds) * time.Second
}

// ReplayWindow returns the configured nonce replay window as a Duration.
func (c *Config) ReplayWindow() time.Duration {
	return time.Duration(c.Pairing.ReplayWindowHours) * time.Hour
}
