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

package bridge

import (
	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
	px "github.com/sabouaram/o2/proxy"
	tp "github.com/sabouaram/o2/transport"
)

// TagO2Lite is the 8-char protocol tag for the thin-client bridge.
const TagO2Lite = "O2lite"

// O2Lite is a bridge Instance for a lightweight client that speaks the
// same length-prefixed TCP frames as a full process but implements none of
// discovery, clock averaging or the scheduler itself — it routes entirely
// through the transport package's socket core "lightweight
// TCP bridges (O2lite) route through the socket core."
type O2Lite struct {
	name   o2nm.Name
	conn   *tp.Connection
	status px.Status
}

// NewO2Lite wraps an accepted TCP connection from a thin client.
func NewO2Lite(name o2nm.Name, conn *tp.Connection) *O2Lite {
	return &O2Lite{name: name, conn: conn, status: px.StatusConnecting}
}

func (o *O2Lite) Tag() string { return TagO2Lite }

func (o *O2Lite) Send(msg *o2msg.Message, block bool) liberr.Error {
	if o.status == px.StatusClosed {
		return ErrorInstanceClosed.Error(nil)
	}
	frame, err := msg.EncodeFrame()
	if err != nil {
		return err
	}
	if sendErr := o.conn.Send(frame, block); sendErr != nil {
		return ErrorQueueFull.ErrorParent(sendErr)
	}
	return nil
}

// LocalIsSynchronized is false: an O2lite client has no clock-sync protocol
// of its own, so this instance always reports a "-notime" status.
func (o *O2Lite) LocalIsSynchronized() bool { return false }

// ScheduleBeforeSend is true for the same reason.
func (o *O2Lite) ScheduleBeforeSend() bool { return true }

func (o *O2Lite) Deliver(msg *o2msg.Message) liberr.Error { return nil }

func (o *O2Lite) Connected() { o.status = px.StatusConnected }

func (o *O2Lite) Status() (px.Status, o2nm.Name) { return o.status, o.name }

func (o *O2Lite) Close() liberr.Error {
	if o.status == px.StatusClosed {
		return nil
	}
	o.status = px.StatusClosed
	return o.conn.Close()
}

// Poll is a no-op: the transport.Connection's own reader goroutine already
// delivers inbound frames asynchronously.
func (o *O2Lite) Poll(now float64) {}
