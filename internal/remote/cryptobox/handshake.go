// handshake.go - Section 4.3 authenticated key agreement.
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

package cryptobox

import "crypto/ed25519"

// DirHostToSat and DirSatToHost name the two independent AEAD key
// schedules derived from one session root, per Section 4.3's "each
// direction has its own AEAD key".
const (
	DirHostToSat = "host->sat"
	DirSatToHost = "sat->host"
)

// HandshakeMessage is what each peer sends to offer its ephemeral share,
// signed under its long-lived identity key.
type HandshakeMessage struct {
	Ephemeral [32]byte
	Signature []byte
}

// Offer produces this peer's HandshakeMessage.
func Offer(identity ed25519.PrivateKey, ephemeral *EphemeralKeyPair) *HandshakeMessage {
	return &HandshakeMessage{
		Ephemeral: *ephemeral.Public,
		Signature: SignEphemeral(identity, ephemeral.Public),
	}
}

// ChannelKeys holds the two independent per-direction record ciphers
// produced by completing a handshake.
type ChannelKeys struct {
	Send *RecordCipher
	Recv *RecordCipher
}

// Complete verifies the peer's offered ephemeral against its recorded
// long-lived identity key, derives the DH session root, and returns the
// two per-direction ciphers. sendDir/recvDir must be DirHostToSat and
// DirSatToHost in the appropriate order for the caller's role.
func Complete(
	peerIdentity ed25519.PublicKey,
	peer *HandshakeMessage,
	ours *EphemeralKeyPair,
	sendDir, recvDir string,
) (*ChannelKeys, error) {
	if err := VerifyEphemeral(peerIdentity, &peer.Ephemeral, peer.Signature); err != nil {
		return nil, err
	}
	root := DeriveSessionRoot(ours.Private, &peer.Ephemeral)
	return &ChannelKeys{
		Send: NewSealer(root, sendDir),
		Recv: NewOpener(root, recvDir),
	}, nil
}
