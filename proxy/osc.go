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
	"sync"

	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
	tp "github.com/sabouaram/o2/transport"
)

// OscCodec converts between O2 messages and raw OSC packets. The wire
// details of OSC encoding are an external collaborator this package
// consumes rather than implements; hshoup/gosc or a comparable library
// supplies a concrete OscCodec in production wiring.
type OscCodec interface {
	EncodeOSC(msg *o2msg.Message) ([]byte, error)
	DecodeOSC(packet []byte) (*o2msg.Message, error)
}

// OscDelegate is the Proxy implementation for a service backed by a plain
// OSC peer: messages addressed to the delegate's service are translated to
// OSC and written, length-prefixed, to its TCP connection. There is no UDP
// path, and inbound OSC is not translated: Deliver ignores its message.
type OscDelegate struct {
	mu     sync.Mutex
	name   o2nm.Name
	codec  OscCodec
	tcp    *tp.Connection
	status Status
}

// NewOscDelegateTCP builds an OSC delegate proxy that writes length-prefixed
// OSC-over-TCP packets (the SLIP-free framing OSC 1.1 defines) to conn.
func NewOscDelegateTCP(name o2nm.Name, codec OscCodec, conn *tp.Connection) *OscDelegate {
	return &OscDelegate{name: name, codec: codec, tcp: conn, status: StatusConnecting}
}

func (p *OscDelegate) Send(msg *o2msg.Message, block bool) liberr.Error {
	p.mu.Lock()
	status := p.status
	p.mu.Unlock()
	if status == StatusClosed {
		return ErrorClosed.Error(nil)
	}

	packet, err := p.codec.EncodeOSC(msg)
	if err != nil {
		return ErrorNotConnected.ErrorParent(err)
	}

	if p.tcp == nil {
		return ErrorNotConnected.Error(nil)
	}

	framed := make([]byte, 4+len(packet))
	framed[0] = byte(len(packet) >> 24)
	framed[1] = byte(len(packet) >> 16)
	framed[2] = byte(len(packet) >> 8)
	framed[3] = byte(len(packet))
	copy(framed[4:], packet)

	if sendErr := p.tcp.Send(framed, block); sendErr != nil {
		return ErrorBlocked.ErrorParent(sendErr)
	}
	return nil
}

// LocalIsSynchronized is false: plain OSC peers have no O2 clock-sync
// protocol, so the service reports one of the "-notime" statuses
func (p *OscDelegate) LocalIsSynchronized() bool { return false }

// ScheduleBeforeSend is true: the delegate has no scheduler of its own, so
// the router must hold a timestamped message on the global-time wheel itself.
func (p *OscDelegate) ScheduleBeforeSend() bool { return true }

func (p *OscDelegate) Deliver(msg *o2msg.Message) liberr.Error { return nil }

func (p *OscDelegate) Connected() {
	p.mu.Lock()
	p.status = StatusConnected
	p.mu.Unlock()
}

func (p *OscDelegate) Status() (Status, o2nm.Name) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.name
}

func (p *OscDelegate) Close() liberr.Error {
	p.mu.Lock()
	if p.status == StatusClosed {
		p.mu.Unlock()
		return nil
	}
	p.status = StatusClosed
	p.mu.Unlock()

	if p.tcp != nil {
		return p.tcp.Close()
	}
	return nil
}
