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
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
)

// AddressHub is the reserved address a client sends to ask a peer to act
// as its hub.
const AddressHub = "/_o2/hub"

// NewHubRequestMessage builds the hub request. It carries no arguments;
// the requester is identified by the connection it arrives on.
func NewHubRequestMessage() *o2msg.Message {
	return &o2msg.Message{
		Address: AddressHub,
		Flags:   o2msg.FlagTCP,
	}
}

// HubPeerList builds the announcements a hub sends to a freshly joined
// client: one message per known peer, so the client can run normal
// pairwise discovery against each. The hub's own reply flag is sent
// separately by the caller.
func HubPeerList(ensemble string, peers []o2nm.Name) []*o2msg.Message {
	out := make([]*o2msg.Message, 0, len(peers))
	for _, p := range peers {
		m := NewAnnounceMessage(ensemble, p, FlagInfo)
		m.Flags = o2msg.FlagTCP
		out = append(out, m)
	}
	return out
}
