// daemon.go - role-specific wiring for the remoted dev harness.
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
	"bufio"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/katzenpost/core/log"
	"gopkg.in/op/go-logging.v1"

	"github.com/theAkito/simplex-chat/internal/remote/config"
	"github.com/theAkito/simplex-chat/internal/remote/constants"
	"github.com/theAkito/simplex-chat/internal/remote/controller"
	"github.com/theAkito/simplex-chat/internal/remote/cryptobox"
	"github.com/theAkito/simplex-chat/internal/remote/pairing"
	"github.com/theAkito/simplex-chat/internal/remote/registry"
	"github.com/theAkito/simplex-chat/internal/remote/router"
	"github.com/theAkito/simplex-chat/internal/remote/session"
	"github.com/theAkito/simplex-chat/internal/remote/transport"
	"github.com/theAkito/simplex-chat/internal/remote/vault"
)

// daemon runs one side of a Remote Profile Session as a standalone
// process, taking the OOB pairing token on stdin/stdout rather than
// from a paired Desktop/Mobile UI.
type daemon struct {
	role string
	cfg  *config.Config
	log  *logging.Logger

	identity *cryptobox.IdentityKeyPair
	reg      *registry.Registry  // Host only
	nonces   *pairing.NonceCache // Host only
	ctrl     *controller.Controller

	listener *transport.Listener
	channel  *transport.Channel
}

func newDaemon(role string, cfg *config.Config, logBackend *log.Backend) (*daemon, error) {
	d := &daemon{
		role: role,
		cfg:  cfg,
		log:  logBackend.GetLogger("remoted-daemon"),
	}

	identity, err := loadOrCreateIdentity(cfg.DataDir, role)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	d.identity = identity

	switch role {
	case "host":
		reg, err := registry.OpenWithExistingUsersTable(filepath.Join(cfg.DataDir, cfg.DatabaseFile))
		if err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		d.reg = reg
		d.nonces = pairing.NewNonceCache(cfg.ReplayWindow())
		d.ctrl = controller.NewHostController(reg, d.nonces, identity, d.onResponse, logBackend)
	case "satellite":
		d.ctrl = controller.NewSatelliteController(identity, cfg.Transport.ListenAddress, d.onResponse, logBackend)
	default:
		return nil, fmt.Errorf("unknown role %q, expected host or satellite", role)
	}
	return d, nil
}

func (d *daemon) onResponse(r controller.Response) {
	d.log.Noticef("controller response: %s satIdentityId=%d identity=%s", r.Kind, r.SatIdentityID, r.Identity)
}

// loadOrCreateIdentity seals a fresh long-lived identity key pair to
// disk on first run, and reopens it on subsequent runs, under a
// dev-harness-only fixed passphrase taken from REMOTED_PASSPHRASE (falls
// back to a placeholder, since this binary is for interop testing, not
// production key custody).
func loadOrCreateIdentity(dataDir, role string) (*cryptobox.IdentityKeyPair, error) {
	passphrase := os.Getenv("REMOTED_PASSPHRASE")
	if passphrase == "" {
		passphrase = "dev-harness-passphrase"
	}
	path := filepath.Join(dataDir, role+"-identity.pem")
	v, err := vault.New(role, passphrase, path)
	if err != nil {
		return nil, err
	}

	if sealed, err := v.Open(); err == nil {
		if len(sealed) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("identity vault: corrupt key material")
		}
		priv := ed25519.PrivateKey(sealed)
		return &cryptobox.IdentityKeyPair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
	}

	identity, err := cryptobox.GenerateIdentity()
	if err != nil {
		return nil, err
	}
	if err := v.Seal(identity.Private); err != nil {
		return nil, err
	}
	return identity, nil
}

// Start brings up the interactive pairing prompt and, once paired,
// establishes the secure duplex channel.
func (d *daemon) Start() error {
	reader := bufio.NewReader(os.Stdin)

	switch d.role {
	case "satellite":
		logBackend, _ := log.New("", "INFO", true)
		token, err := d.ctrl.BeginPairing(logBackend)
		if err != nil {
			return err
		}
		fmt.Printf("pairing token (paste into the host): %s\n", token)
		fmt.Print("paste the host's identity public key it prints after confirming: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		hostPub, err := base64.StdEncoding.DecodeString(strings.TrimSpace(line))
		if err != nil || len(hostPub) != ed25519.PublicKeySize {
			return fmt.Errorf("invalid host identity public key")
		}
		// The operator only pastes the host's key after the host has
		// confirmed pairing out of band, so this peer's half of the
		// Pairing -> Active transition (Section 4.4) is safe to apply now.
		if err := d.ctrl.Session().Transition(session.EventIdentityConfirm); err != nil {
			return err
		}
		return d.dialAndAttach(ed25519.PublicKey(hostPub))

	case "host":
		fmt.Print("paste the satellite's pairing token: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		token := strings.TrimSpace(line)

		logBackend, _ := log.New("", "INFO", true)
		deviceID, err := d.ctrl.AcceptPairingAnswer(token, logBackend)
		if err != nil {
			return fmt.Errorf("accept pairing: %w", err)
		}
		if err := d.ctrl.ConfirmPairing(deviceID); err != nil {
			return fmt.Errorf("confirm pairing: %w", err)
		}
		dev, err := d.reg.ByID(deviceID)
		if err != nil {
			return err
		}
		fmt.Printf("host identity public key (paste into the satellite): %s\n",
			base64.StdEncoding.EncodeToString(dev.LocalPublicKey))
		return d.listenAndAttach(deviceID)
	}
	return fmt.Errorf("unknown role %q", d.role)
}

// dialAndAttach is the Satellite side of the harness's connection: the
// Host listens (listenAndAttach) and the Satellite dials the configured
// transport address, the same address it put in its own pairing token.
func (d *daemon) dialAndAttach(hostIdentity ed25519.PublicKey) error {
	sess := d.ctrl.Session()
	satRouter := router.NewSatelliteRouter(sess, func(evt json.RawMessage) {
		d.log.Infof("event: %s", evt)
	}, d.log)

	ch, err := d.establishSatelliteChannel(context.Background(), hostIdentity, sess, satRouter)
	if err != nil {
		return err
	}
	d.channel = ch
	sess.AttachChannel(ch)
	d.resumeAfterAttach(sess)
	return nil
}

// establishSatelliteChannel dials the Host and completes the Satellite
// side of the handshake. onBroken both suspends the session and hands
// off to the Section 4.3 reconnect driver, so every dial attempt -
// first or retried - wires the same recovery path.
func (d *daemon) establishSatelliteChannel(ctx context.Context, hostIdentity ed25519.PublicKey, sess *session.Session, satRouter *router.SatelliteRouter) (*transport.Channel, error) {
	ephemeral, err := cryptobox.GenerateEphemeral()
	if err != nil {
		return nil, err
	}
	conn, err := transport.DialDirect(ctx, d.cfg.Transport.ListenAddress)
	if err != nil {
		return nil, err
	}

	ch, err := transport.EstablishSatellite(
		conn, d.identity.Private, hostIdentity, ephemeral,
		d.cfg.Transport.MaxFrameSize, d.log,
		func(f *transport.Frame) { satRouter.DispatchFrame(f) },
		func(err error) { d.onSatelliteChannelBroken(sess, hostIdentity, satRouter, err) },
	)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ch, nil
}

// onSatelliteChannelBroken suspends the session (Section 4.4) and
// starts the Section 4.3 automatic reconnect: exponential backoff up
// to constants.ReconnectCeiling, disposing the session if that ceiling
// passes without a successful reconnect.
func (d *daemon) onSatelliteChannelBroken(sess *session.Session, hostIdentity ed25519.PublicKey, satRouter *router.SatelliteRouter, err error) {
	d.log.Warningf("channel broken: %v", err)
	if terr := sess.Transition(session.EventChannelBroken); terr != nil {
		d.log.Warningf("suspend transition: %v", terr)
	}
	go d.reconnectSatellite(sess, hostIdentity, satRouter)
}

// reconnectSatellite is the Section 4.3 reconnect driver: it is the
// only thing that redials after a broken channel, since the Host side
// stays passive and waits for the Satellite to come back (its listener
// already accepts the next inbound dial in onConn).
func (d *daemon) reconnectSatellite(sess *session.Session, hostIdentity ed25519.PublicKey, satRouter *router.SatelliteRouter) {
	ch, err := transport.Reconnect(context.Background(), constants.ReconnectCeiling,
		func(ctx context.Context) (*transport.Channel, error) {
			return d.establishSatelliteChannel(ctx, hostIdentity, sess, satRouter)
		})
	if err != nil {
		d.log.Warningf("reconnect ceiling exceeded: %v", err)
		if terr := sess.Transition(session.EventTerminate); terr != nil {
			d.log.Warningf("dispose after reconnect failure: %v", terr)
		}
		return
	}
	d.channel = ch
	sess.AttachChannel(ch)
	d.resumeAfterAttach(sess)
}

// resumeAfterAttach returns a Suspended session to Active once a
// channel has just been attached outside the Controller (initial
// attach, passive re-accept, or the reconnect driver), and replays
// whatever accumulated during the outage (Section 4.4, Section 4.5).
func (d *daemon) resumeAfterAttach(sess *session.Session) {
	if sess.Phase() != session.Suspended {
		return
	}
	if err := sess.Transition(session.EventReconnect); err != nil {
		d.log.Warningf("attach transition: %v", err)
		return
	}
	if err := sess.FlushBufferedEvents(); err != nil {
		d.log.Warningf("event replay: %v", err)
	}
	if err := sess.FlushQueuedCommands(); err != nil {
		d.log.Warningf("command flush: %v", err)
	}
}

// listenAndAttach binds a listener and, on the next inbound dial from
// the just-paired Satellite, completes the handshake against the
// per-device identity keys the registry recorded during pairing.
func (d *daemon) listenAndAttach(deviceID int64) error {
	dev, err := d.reg.ByID(deviceID)
	if err != nil {
		return err
	}
	hostIdentity := ed25519.PrivateKey(dev.LocalPrivateKey)
	satIdentity := ed25519.PublicKey(dev.DevicePublicKey)

	sess := d.ctrl.Session()
	hostRouter := router.NewHostRouter(sess, newEchoEngine(d.log), &echoView{log: d.log}, d.log)

	onConn := func(conn net.Conn) {
		ephemeral, err := cryptobox.GenerateEphemeral()
		if err != nil {
			d.log.Errorf("ephemeral generation failed: %v", err)
			conn.Close()
			return
		}
		ch, err := transport.EstablishHost(
			conn, hostIdentity, satIdentity, ephemeral,
			d.cfg.Transport.MaxFrameSize, d.log,
			func(f *transport.Frame) {
				reply, err := hostRouter.HandleFrame(f)
				if err != nil {
					d.log.Warningf("handle frame: %v", err)
					return
				}
				if reply != nil {
					if err := sess.Send(reply); err != nil {
						d.log.Warningf("send reply: %v", err)
					}
				}
			},
			func(err error) {
				d.log.Warningf("channel broken: %v", err)
				if terr := sess.Transition(session.EventChannelBroken); terr != nil {
					d.log.Warningf("suspend transition: %v", terr)
				}
			},
		)
		if err != nil {
			d.log.Errorf("handshake failed: %v", err)
			conn.Close()
			return
		}
		d.channel = ch
		sess.AttachChannel(ch)
		d.resumeAfterAttach(sess)
	}

	ln, err := transport.Listen(d.cfg.Transport.ListenAddress, d.log, onConn)
	if err != nil {
		return err
	}
	d.listener = ln
	d.log.Noticef("listening on %s for the paired satellite", ln.Addr())
	return nil
}

// Stop tears down whatever this daemon attached.
func (d *daemon) Stop() {
	if d.channel != nil {
		d.channel.Close()
	}
	if d.listener != nil {
		d.listener.Close()
	}
	if d.nonces != nil {
		d.nonces.Halt()
	}
	if d.reg != nil {
		d.reg.Close()
	}
}
