// channel.go - length-prefixed AEAD record channel over a net.Conn.
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
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/katzenpost/core/worker"
	"gopkg.in/op/go-logging.v1"

	"github.com/theAkito/simplex-chat/internal/remote/constants"
	"github.com/theAkito/simplex-chat/internal/remote/cryptobox"
	"github.com/theAkito/simplex-chat/internal/remote/remoteerr"
)

// Channel frames, encrypts, and delivers Frames over one net.Conn. Its
// read loop runs as a worker.Worker task (Section 5: "one task per
// active transport"); writes are synchronized by a mutex so the session
// writer task is the only one ever touching the wire concurrently with
// the keepalive ticker.
type Channel struct {
	worker.Worker

	conn net.Conn
	keys *cryptobox.ChannelKeys
	log  *logging.Logger

	maxFrameSize int

	writeMu sync.Mutex

	onFrame  func(*Frame)
	onBroken func(error)
	failOnce sync.Once

	lastRecv   atomicTime
	missedPing int
}

// NewChannel wraps conn with the given per-direction ciphers. onFrame is
// invoked (from the read loop) for every successfully decoded
// non-keepalive frame; onBroken is invoked exactly once when the
// channel is declared broken (decode failure, auth failure, replay,
// oversize frame, or missed-keepalive timeout), per Section 7.
func NewChannel(conn net.Conn, keys *cryptobox.ChannelKeys, maxFrameSize int, log *logging.Logger, onFrame func(*Frame), onBroken func(error)) *Channel {
	if maxFrameSize <= 0 {
		maxFrameSize = constants.DefaultMaxFrameSize
	}
	c := &Channel{
		conn:         conn,
		keys:         keys,
		log:          log,
		maxFrameSize: maxFrameSize,
		onFrame:      onFrame,
		onBroken:     onBroken,
	}
	c.lastRecv.Set(time.Now())
	c.Go(c.readLoop)
	c.Go(c.keepaliveLoop)
	return c
}

// Send encrypts and writes one frame. Safe for concurrent use, though
// Section 5 restricts actual callers to the single session writer task.
func (c *Channel) Send(f *Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return remoteerr.New(remoteerr.KindDecodeError, err)
	}
	if len(payload) > c.maxFrameSize {
		return remoteerr.New(remoteerr.KindFrameTooLarge, nil)
	}
	// Sealing under writeMu keeps records on the wire in counter order,
	// which the peer's opener requires.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	sealed, err := c.keys.Send.Seal(payload)
	if err != nil {
		return err
	}

	var lenPrefix [constants.FrameLengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(sealed)))
	if _, err := c.conn.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err = c.conn.Write(sealed)
	return err
}

// Close tears down the read/keepalive loops and the underlying
// connection. The conn is closed before waiting on the loops so a read
// blocked on it returns; a deliberate Close never invokes onBroken.
func (c *Channel) Close() error {
	c.failOnce.Do(func() {})
	err := c.conn.Close()
	c.Halt()
	return err
}

func (c *Channel) readLoop() {
	defer func() {
		// Nothing to release here: Close and fail own closing the conn.
	}()
	for {
		f, err := c.readOneFrame()
		if err != nil {
			select {
			case <-c.HaltCh():
				return
			default:
			}
			c.fail(err)
			return
		}
		c.lastRecv.Set(time.Now())
		c.missedPing = 0

		switch f.Kind {
		case KindPing:
			_ = c.Send(NewPong())
			continue
		case KindPong:
			continue
		case KindBye:
			c.fail(remoteerr.New(remoteerr.KindChannelBroken, errors.New(f.Reason)))
			return
		}
		c.onFrame(f)
	}
}

func (c *Channel) readOneFrame() (*Frame, error) {
	var lenPrefix [constants.FrameLengthPrefixSize]byte
	if _, err := io.ReadFull(c.conn, lenPrefix[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenPrefix[:])
	if int(size) > c.maxFrameSize+64 { // allow for AEAD overhead
		return nil, remoteerr.New(remoteerr.KindFrameTooLarge, nil)
	}
	sealed := make([]byte, size)
	if _, err := io.ReadFull(c.conn, sealed); err != nil {
		return nil, err
	}

	plaintext, err := c.keys.Recv.Open(sealed)
	if err != nil {
		if errors.Is(err, cryptobox.ErrReplay) {
			return nil, remoteerr.New(remoteerr.KindReplayDetected, err)
		}
		return nil, remoteerr.New(remoteerr.KindAuthFail, err)
	}

	f := &Frame{}
	if err := json.Unmarshal(plaintext, f); err != nil {
		return nil, remoteerr.New(remoteerr.KindDecodeError, err)
	}
	return f, nil
}

func (c *Channel) keepaliveLoop() {
	ticker := time.NewTicker(constants.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.HaltCh():
			return
		case <-ticker.C:
			if time.Since(c.lastRecv.Get()) < constants.KeepaliveInterval {
				continue
			}
			c.missedPing++
			if c.missedPing >= constants.KeepaliveMissedLimit {
				c.fail(remoteerr.New(remoteerr.KindChannelBroken,
					fmt.Errorf("no frame in %d keepalive intervals", constants.KeepaliveMissedLimit)))
				return
			}
			_ = c.Send(NewPing())
		}
	}
}

func (c *Channel) fail(err error) {
	c.failOnce.Do(func() {
		if c.log != nil {
			c.log.Warningf("channel broken: %v", err)
		}
		c.conn.Close()
		if c.onBroken != nil {
			c.onBroken(err)
		}
	})
}

// atomicTime is a tiny time.Time box safe for concurrent Set/Get,
// avoiding a dependency on the generic atomic.Value boxing rules for a
// single hot field.
type atomicTime struct {
	mu sync.RWMutex
	t  time.Time
}

func (a *atomicTime) Set(t time.Time) {
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

func (a *atomicTime) Get() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.t
}
