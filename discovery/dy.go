/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package discovery

import (
	"fmt"

	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
)

// AddressDy is the reserved address carrying discovery announcements.
const AddressDy = "/_o2/dy"

// Flag qualifies a discovery announcement.
type Flag int32

const (
	// FlagInfo announces the sender's existence (broadcast, gossip join,
	// or a hub relaying a known peer).
	FlagInfo Flag = iota
	// FlagCallback is sent by the server side over a temporary connection
	// it opened toward the client, telling the client to drop that socket
	// and reconnect in the client role.
	FlagCallback
	// FlagConnect is sent by the client right after connecting to the
	// server chosen by the name tie-break.
	FlagConnect
	// FlagReply is the hub's first answer to a hub request.
	FlagReply
	// FlagHub is sent by a process asking the remote side to act as its hub.
	FlagHub
)

func (f Flag) String() string {
	switch f {
	case FlagInfo:
		return "info"
	case FlagCallback:
		return "callback"
	case FlagConnect:
		return "connect"
	case FlagReply:
		return "reply"
	case FlagHub:
		return "hub"
	}
	return fmt.Sprintf("flag(%d)", int32(f))
}

// Announce is the decoded payload of a discovery announcement:
// ensemble name, the sender's public and internal IPs in hex, its TCP
// port, and the role flag.
type Announce struct {
	Ensemble string
	Public   string
	Internal string
	Port     uint16
	Flag     Flag
}

// Name assembles the sender's process name from the announce fields.
func (a Announce) Name() o2nm.Name {
	return o2nm.Name(fmt.Sprintf("@%s:%s:%04x", a.Public, a.Internal, a.Port))
}

// NewAnnounceMessage builds the announcement for a process named self in
// the given ensemble. The wire shape is (ensemble, public, internal, port,
// flag) typed "sssii".
func NewAnnounceMessage(ensemble string, self o2nm.Name, f Flag) *o2msg.Message {
	return &o2msg.Message{
		Address: AddressDy,
		Args: []o2msg.Arg{
			o2msg.String(ensemble),
			o2msg.String(self.PublicIPHex()),
			o2msg.String(self.InternalIPHex()),
			o2msg.Int32(int32(self.Port())),
			o2msg.Int32(int32(f)),
		},
	}
}

// ParseAnnounce validates and decodes an inbound discovery announcement.
// A non-matching ensemble is reported as ErrorWrongEnsemble so the caller
// can drop the datagram without further work.
func ParseAnnounce(m *o2msg.Message, ensemble string) (Announce, liberr.Error) {
	if m.TypeTagString() != ",sssii" || len(m.Args) != 5 {
		return Announce{}, ErrorBadAnnounce.Error(nil)
	}

	a := Announce{
		Ensemble: m.Args[0].S,
		Public:   m.Args[1].S,
		Internal: m.Args[2].S,
		Port:     uint16(m.Args[3].I),
		Flag:     Flag(m.Args[4].I),
	}

	if a.Ensemble != ensemble {
		return Announce{}, ErrorWrongEnsemble.Error(nil)
	}

	if !a.Name().Valid() {
		return Announce{}, ErrorBadAnnounce.Error(nil)
	}

	return a, nil
}

// IsServer applies the pairwise connection rule: of two processes that
// discovered each other, the one with the greater name listens and the
// other dials.
func IsServer(self, peer o2nm.Name) bool {
	return self.Greater(peer)
}
