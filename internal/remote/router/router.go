// router.go - Host-side forward/deny/mirror logic and Satellite-side
// correlation bookkeeping (Section 4.5).
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

package router

import (
	"encoding/json"
	"errors"

	"gopkg.in/op/go-logging.v1"

	"github.com/theAkito/simplex-chat/internal/remote/engine"
	"github.com/theAkito/simplex-chat/internal/remote/remoteerr"
	"github.com/theAkito/simplex-chat/internal/remote/session"
	"github.com/theAkito/simplex-chat/internal/remote/transport"
)

type tagEnvelope struct {
	Type string `json:"type"`
}

func tagOf(raw json.RawMessage) (string, error) {
	var env tagEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", remoteerr.New(remoteerr.KindDecodeError, err)
	}
	if env.Type == "" {
		return "", remoteerr.New(remoteerr.KindDecodeError, errors.New("router: command missing type tag"))
	}
	return env.Type, nil
}

type deniedReplyBody struct {
	Error  string       `json:"error"`
	Reason DenialReason `json:"reason"`
}

// HostRouter wires one Session's inbound `cmd` frames to the chat
// engine, enforcing the allowlist and the local-mirror effect, and
// mirrors the engine's replies and events back over the channel
// (Section 4.5, Host side).
type HostRouter struct {
	sess        *session.Session
	eng         engine.Engine
	view        engine.View
	log         *logging.Logger
	unsubscribe func()
}

// NewHostRouter wires sess to eng and begins mirroring eng's output
// onto sess's channel. view may be nil if no command requiring a
// local mirror effect will ever be forwarded.
func NewHostRouter(sess *session.Session, eng engine.Engine, view engine.View, log *logging.Logger) *HostRouter {
	r := &HostRouter{sess: sess, eng: eng, view: view, log: log}
	r.unsubscribe = eng.Subscribe(r.onEngineResponse)
	return r
}

// Close stops mirroring the engine's output onto this router's session.
func (r *HostRouter) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// HandleFrame classifies and processes one inbound `cmd` frame. A
// denied command's reply frame is returned for the caller to send
// immediately; a forwarded command's reply arrives later, asynchronously,
// through onEngineResponse, so HandleFrame returns (nil, nil) for it.
func (r *HostRouter) HandleFrame(f *transport.Frame) (*transport.Frame, error) {
	if f.Kind != transport.KindCmd || f.ID == nil {
		return nil, remoteerr.New(remoteerr.KindDecodeError, errors.New("router: not a cmd frame"))
	}
	tag, err := tagOf(f.Cmd)
	if err != nil {
		return nil, err
	}

	verdict, reason := Classify(tag)
	if verdict == Denied {
		body, _ := json.Marshal(deniedReplyBody{Error: string(remoteerr.KindDeniedCommand), Reason: reason})
		return transport.NewReply(*f.ID, body), nil
	}

	if err := r.eng.Inject(*f.ID, engine.Command{Tag: tag, Body: f.Cmd}); err != nil {
		return nil, err
	}
	if RequiresMirror(tag) && r.view != nil {
		if err := r.view.ApplyMirror(engine.Command{Tag: tag, Body: f.Cmd}); err != nil && r.log != nil {
			r.log.Warningf("local mirror effect failed for %s: %v", tag, err)
		}
	}
	return nil, nil
}

// onEngineResponse mirrors one engine output item onto the Host's
// Satellite channel (Section 4.5, point 4). While the session is not
// Active, events are buffered (Section 4.4's Suspended-buffering
// invariant) and replies are dropped. Items flagged LogResponseToFile
// are never sent.
func (r *HostRouter) onEngineResponse(corrID uint64, resp engine.Response) {
	if resp.LogResponseToFile {
		return
	}
	if r.sess.Phase() != session.Active {
		if resp.IsEvent {
			r.sess.BufferEvent(resp.Body)
		}
		return
	}

	var f *transport.Frame
	if resp.IsEvent {
		f = transport.NewEvent(resp.Body)
	} else {
		f = transport.NewReply(corrID, resp.Body)
	}
	if err := r.sess.Send(f); err != nil && r.log != nil {
		r.log.Warningf("mirror send failed: %v", err)
	}
}

// SatelliteRouter issues commands from the local UI over sess and
// dispatches inbound `reply`/`event` frames (Section 4.5, Satellite
// side).
type SatelliteRouter struct {
	sess    *session.Session
	log     *logging.Logger
	onEvent func(json.RawMessage)
}

// NewSatelliteRouter builds a SatelliteRouter over sess. onEvent is
// invoked for every inbound `event` frame, as if it were emitted by a
// local engine.
func NewSatelliteRouter(sess *session.Session, onEvent func(json.RawMessage), log *logging.Logger) *SatelliteRouter {
	return &SatelliteRouter{sess: sess, onEvent: onEvent, log: log}
}

// IssueCommand assigns a correlation id to cmd and sends or queues it
// per the session's current phase.
func (r *SatelliteRouter) IssueCommand(cmd json.RawMessage) (<-chan session.CommandResult, error) {
	return r.sess.SendCommand(cmd)
}

// DispatchFrame handles one inbound `reply` or `event` frame. An
// orphan reply (no matching pending entry) is logged and dropped, per
// Section 4.5.
func (r *SatelliteRouter) DispatchFrame(f *transport.Frame) {
	switch f.Kind {
	case transport.KindReply:
		if f.ID == nil {
			return
		}
		if !r.sess.ResolveReply(*f.ID, f.Resp) {
			if r.log != nil {
				r.log.Warningf("dropped orphan reply for id %d", *f.ID)
			}
		}
	case transport.KindEvent:
		if r.onEvent != nil {
			r.onEvent(f.Resp)
		}
	}
}
