// engine.go - the declared boundary to the external chat engine
// (Section 1: "accessed only through declared interfaces").
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

// Package engine declares the collaborator boundary to the chat core:
// a JSON command/response surface reached through an input queue and
// an output queue, exactly as Section 1 describes it. Nothing in this
// module implements the chat engine itself.
package engine

import "encoding/json"

// Command is one JSON-RPC command accepted by the chat engine's input
// queue. Tag is the command's discriminator (e.g. "apiSendMessage",
// "apiDeleteStorage"); Body is the full command payload as received
// off the wire or from the local UI.
type Command struct {
	Tag  string
	Body json.RawMessage
}

// Response is one JSON-RPC response or event emitted on the chat
// engine's output queue. IsEvent distinguishes a spontaneous event
// (Section 6 `kind=event`) from a reply correlated to a prior Command
// (Section 6 `kind=reply`); LogResponseToFile mirrors the engine's own
// field of the same name, consulted by the mirror rule in Section
// 4.5 ("if ... the response is logResponseToFile-irrelevant").
type Response struct {
	Tag               string
	Body              json.RawMessage
	IsEvent           bool
	LogResponseToFile bool
}

// InputQueue is the write side of the chat engine boundary: injecting
// a Command with a given correlation id asks the engine to execute it
// and eventually emit a matching Response on the OutputQueue.
type InputQueue interface {
	Inject(corrID uint64, cmd Command) error
}

// OutputQueue is the read side of the chat engine boundary. Subscribe
// registers a callback invoked for every Response the engine emits;
// the callback must not block the engine's own single-writer task.
type OutputQueue interface {
	Subscribe(onResponse func(corrID uint64, resp Response)) (unsubscribe func())
}

// Engine is the full declared collaborator: an input queue to drive
// and an output queue to observe. The Host side's router (C5) is the
// only component permitted to call Inject, preserving the engine's
// single-writer discipline (Section 5).
type Engine interface {
	InputQueue
	OutputQueue
}

// View is the Host's own in-memory chat view, the target of the
// local-mirror effect Section 4.5 requires for APIChatRead and
// APIChatItemReaction: a Satellite-driven state change must also be
// visible in the Host's own UI without waiting for an engine event.
type View interface {
	ApplyMirror(cmd Command) error
}
