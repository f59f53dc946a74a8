// discovery.go - the three Section 4.2 discovery modes: Satellite-as-
// server, Host-as-server-after-flip, and Bouncer-mediated.
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

package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/katzenpost/core/worker"
	"gopkg.in/op/go-logging.v1"
)

// acceptKeepAlive is applied to every accepted TCP connection, as the
// teacher's listener does for its mix-link sockets.
const acceptKeepAlive = 3 * time.Minute

// Listener accepts inbound dials for the Satellite-as-server and
// Host-as-server-after-flip discovery modes (Section 4.2). Each
// accepted net.Conn is handed to onConn, which is expected to run the
// handshake and, on success, wrap the conn in a Channel.
type Listener struct {
	worker.Worker
	sync.Mutex

	ln  net.Listener
	log *logging.Logger

	onConn func(net.Conn)
}

// Listen binds addr and starts the accept loop.
func Listen(addr string, log *logging.Logger, onConn func(net.Conn)) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &Listener{ln: ln, log: log, onConn: onConn}
	l.Go(l.worker)
	return l, nil
}

// Addr reports the bound address, useful when addr was ":0".
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting and releases the bound socket.
func (l *Listener) Close() error {
	l.Halt()
	return l.ln.Close()
}

func (l *Listener) worker() {
	defer l.ln.Close()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.HaltCh():
				return
			default:
			}
			if l.log != nil {
				l.log.Errorf("accept failure: %v", err)
			}
			return
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetKeepAlive(true)
			tcpConn.SetKeepAlivePeriod(acceptKeepAlive)
		}
		go l.onConn(conn)
	}
}

// DialDirect connects to a known address, used once a pairing token's
// Addr field names a reachable Satellite or flipped Host listener.
func DialDirect(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// DialBouncer connects through a relay address carrying the bouncer's
// own framing preamble: a single length-prefixed line naming the
// target satellite's public key, after which the bouncer splices the
// raw TCP stream through to the matched peer. The wire shape mirrors
// the teacher's session_pool dial-then-handshake sequencing: write the
// routing preamble first, then hand the same conn to the Channel
// handshake unmodified.
func DialBouncer(ctx context.Context, bouncerAddr string, satPub []byte) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", bouncerAddr)
	if err != nil {
		return nil, err
	}
	preamble := make([]byte, 2+len(satPub))
	preamble[0] = byte(len(satPub) >> 8)
	preamble[1] = byte(len(satPub))
	copy(preamble[2:], satPub)
	if _, err := conn.Write(preamble); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bouncer preamble: %w", err)
	}
	return conn, nil
}
