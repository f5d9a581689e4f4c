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

package proxy

import (
	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
)

// Status is a proxy's lifecycle state.
type Status int

const (
	StatusUnknown Status = iota
	StatusConnecting
	StatusConnected
	StatusClosed
)

// Proxy is the capability set every non-local provider must implement:
// it is what lets the router treat a remote process, an OSC delegate, a
// bridge endpoint, and an MQTT
// peer identically.
type Proxy interface {
	// Send emits msg to the proxy's destination. block controls whether the
	// call may wait for queue space (true) or must fail fast with
	// ErrorBlocked when the send queue is full (false) — the O2_BLOCKED
	// semantics.
	Send(msg *o2msg.Message, block bool) liberr.Error

	// LocalIsSynchronized reports whether the local process may treat this
	// proxy's destination as clock-synchronized.
	LocalIsSynchronized() bool

	// ScheduleBeforeSend reports whether the router must run the
	// global-time scheduler for timestamped messages before calling Send,
	// because this proxy cannot schedule on its own.
	ScheduleBeforeSend() bool

	// Deliver is the socket-core callback for one complete inbound framed
	// message.
	Deliver(msg *o2msg.Message) liberr.Error

	// Connected is called once the underlying transport finishes its
	// handshake.
	Connected()

	// Status reports the proxy's lifecycle state and its peer's process name.
	Status() (Status, o2nm.Name)

	// Close tears down the proxy's transport. Idempotent.
	Close() liberr.Error
}
