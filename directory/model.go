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

package directory

import (
	o2nm "github.com/sabouaram/o2/o2name"
)

// SendMode controls how a tap's forwarded copy is transported
type SendMode int

const (
	// SendKeep forwards the copy using whatever tcp/udp flag the original
	// message carried.
	SendKeep SendMode = iota
	// SendReliable forces the forwarded copy onto TCP.
	SendReliable
	// SendBestEffort forces the forwarded copy onto UDP.
	SendBestEffort
)

// ProviderKind tags the five shapes a service provider can take.
type ProviderKind int

const (
	ProviderLocalHandlerTree ProviderKind = iota
	ProviderLocalSingleHandler
	ProviderRemoteProcess
	ProviderBridge
	ProviderOSCDelegate
)

// IsLocal reports whether this provider kind lives on this process.
func (k ProviderKind) IsLocal() bool {
	return k == ProviderLocalHandlerTree || k == ProviderLocalSingleHandler
}

// Provider is one entry in a service's ordered provider list. Process is
// always populated (used for tie-breaking); Handle is an opaque pointer the
// router/proxy layer attaches (a pathtree.Tree, a single pathtree.Handler, or
// a proxy.Proxy depending on Kind).
type Provider struct {
	Process    o2nm.Name
	Kind       ProviderKind
	Handle     interface{}
	Properties string
}

// Tap is a relation between a tappee service and a tapper service on a
// specific process, owned by the tapper's process.
type Tap struct {
	TapperService string
	TapperProcess o2nm.Name
	Mode          SendMode
}

// Entry is the full per-service record held in the directory.
type Entry struct {
	Name      string
	Providers []Provider
	Taps      []Tap
}

// Active returns the position-0 "active" provider and true, or the zero
// value and false if the entry has no providers.
func (e *Entry) Active() (Provider, bool) {
	if len(e.Providers) == 0 {
		return Provider{}, false
	}
	return e.Providers[0], true
}

// Status mirrors the /_o2/si notification payload.
type Status int

const (
	StatusUnknown Status = iota
	StatusRemote
	StatusLocal
	StatusGone
)

// StatusEvent is posted to Notifier.Notify whenever a service's status
// changes, mirroring the internal /_o2/si notification.
type StatusEvent struct {
	Service    string
	Status     Status
	Process    o2nm.Name
	Properties string
}

// Notifier receives internal status-change notifications. o2proc wires this
// to its own /_o2/si publication.
type Notifier interface {
	Notify(evt StatusEvent)
}

// Broadcaster sends an outbound /_o2/sv mutation to every connected peer,
// o2proc/router wire this to the transport layer.
type Broadcaster interface {
	BroadcastMutation(m Mutation)
}

// MutationKind distinguishes the four kinds of /_o2/sv payload.
type MutationKind int

const (
	MutationAddService MutationKind = iota
	MutationRemoveService
	MutationAddTap
	MutationRemoveTap
)

// Mutation is the wire payload of /_o2/sv: (service, add?, is_service_or_tap,
// tapper-or-properties, send_mode), attributed to the sending peer on the
// receiving side.
type Mutation struct {
	Kind          MutationKind
	Service       string
	Process       o2nm.Name
	Properties    string
	TapperService string
	Mode          SendMode
}
