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
	"strings"

	liberr "github.com/sabouaram/o2/errors"
	o2nm "github.com/sabouaram/o2/o2name"
)

// BrokerPeer is a peer learned from the wide-area broker's discovery
// subject. ClockSynced distinguishes the "/cs" announcement variant from
// the plain "/dy" one.
type BrokerPeer struct {
	Name        o2nm.Name
	ClockSynced bool
}

// BrokerPayload renders the ASCII discovery payload a process publishes
// on the broker: its own name with a "/dy" suffix, or "/cs" once it has
// acquired clock synchronization.
func BrokerPayload(self o2nm.Name, clockSynced bool) string {
	if clockSynced {
		return self.String() + "/cs"
	}
	return self.String() + "/dy"
}

// ParseBrokerPayload decodes an inbound discovery payload.
func ParseBrokerPayload(payload string) (BrokerPeer, liberr.Error) {
	var synced bool

	switch {
	case strings.HasSuffix(payload, "/cs"):
		synced = true
	case strings.HasSuffix(payload, "/dy"):
		synced = false
	default:
		return BrokerPeer{}, ErrorBrokerPayload.Error(nil)
	}

	name, err := o2nm.Parse(payload[:len(payload)-3])
	if err != nil {
		return BrokerPeer{}, ErrorBrokerPayload.ErrorParent(err)
	}

	return BrokerPeer{Name: name, ClockSynced: synced}, nil
}

// Route says how to reach a broker-discovered peer.
type Route int

const (
	// RouteDirect means both sides share a public IP (same site, no NAT
	// between them) and should upgrade to a direct TCP connection.
	RouteDirect Route = iota
	// RouteBrokered means the peer is only reachable through the broker.
	RouteBrokered
)

// Categorize decides the transport for a broker-discovered peer: direct
// TCP when the two processes share a public IP and that IP is known
// (non-zero), brokered otherwise.
func Categorize(self, peer o2nm.Name) Route {
	if self.SamePublicIP(peer) && self.PublicIPHex() != "00000000" {
		return RouteDirect
	}
	return RouteBrokered
}
