// stubengine.go - a minimal engine.Engine/engine.View implementation for
// the remoted dev harness. The real chat engine is an external
// collaborator this subsystem never implements (Section "Declared
// external collaborator boundary"); this stub only exists so the
// Host-side router has something to forward into outside of the
// Desktop/Mobile applications.
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

package main

import (
	"encoding/json"
	"sync"

	"gopkg.in/op/go-logging.v1"

	"github.com/theAkito/simplex-chat/internal/remote/engine"
)

// echoEngine replies to every injected command with its own body, so
// that the dev harness can exercise the router and channel without a
// real chat store behind it.
type echoEngine struct {
	mu  sync.Mutex
	sub func(corrID uint64, resp engine.Response)
	log *logging.Logger
}

func newEchoEngine(log *logging.Logger) *echoEngine {
	return &echoEngine{log: log}
}

func (e *echoEngine) Inject(corrID uint64, cmd engine.Command) error {
	e.mu.Lock()
	sub := e.sub
	e.mu.Unlock()
	if sub == nil {
		return nil
	}
	body, _ := json.Marshal(map[string]string{"type": cmd.Tag + "Result", "echoedFrom": cmd.Tag})
	sub(corrID, engine.Response{Tag: cmd.Tag + "Result", Body: body})
	return nil
}

func (e *echoEngine) Subscribe(onResponse func(corrID uint64, resp engine.Response)) func() {
	e.mu.Lock()
	e.sub = onResponse
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		e.sub = nil
		e.mu.Unlock()
	}
}

// echoView logs mirrored commands instead of applying them to any local
// state, since the dev harness has no chat database of its own.
type echoView struct {
	log *logging.Logger
}

func (v *echoView) ApplyMirror(cmd engine.Command) error {
	if v.log != nil {
		v.log.Infof("local mirror effect: %s", cmd.Tag)
	}
	return nil
}
