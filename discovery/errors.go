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

// Package discovery lets ensemble members find each other without prior
// configuration. Three interchangeable mechanisms are provided: UDP
// broadcast over a fixed list of well-known ports, a SWIM gossip mesh
// (memberlist) for networks that filter broadcast, and wide-area
// announcements over a shared broker. Hub-mode bootstrap rides on the
// same announcement format. Zeroconf/mDNS is left to an external
// library; this package only defines the Resolver seam and the
// serialized, watchdogged resolve queue such a library plugs into.
package discovery

import (
	"fmt"

	liberr "github.com/sabouaram/o2/errors"
)

const (
	ErrorNoPortAvailable liberr.CodeError = iota + liberr.MinPkgO2Discovery
	ErrorWrongEnsemble
	ErrorResolveTimeout
	ErrorBadAnnounce
	ErrorBroadcastSend
	ErrorGossipJoin
	ErrorBrokerPayload
)

func init() {
	if liberr.ExistInMapMessage(ErrorNoPortAvailable) {
		panic(fmt.Errorf("error code collision with package discovery"))
	}
	liberr.RegisterIdFctMessage(ErrorNoPortAvailable, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorNoPortAvailable:
		return "no well-known discovery port is free"
	case ErrorWrongEnsemble:
		return "peer belongs to a different ensemble"
	case ErrorResolveTimeout:
		return "mDNS resolve watchdog expired"
	case ErrorBadAnnounce:
		return "malformed discovery announcement"
	case ErrorBroadcastSend:
		return "cannot send discovery broadcast"
	case ErrorGossipJoin:
		return "cannot join gossip mesh"
	case ErrorBrokerPayload:
		return "malformed broker discovery payload"
	}

	return liberr.NullMessage
}
