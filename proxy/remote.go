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
	"net"
	"sync"

	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
	tp "github.com/sabouaram/o2/transport"
)

// RemoteProcess is the Proxy implementation for a directly reachable O2
// peer process: one persistent TCP connection framed by
// transport.Connection, plus the peer's UDP address for unordered,
// best-effort sends that should not compete with the TCP send queue.
type RemoteProcess struct {
	mu   sync.Mutex
	name o2nm.Name
	udp  *net.UDPAddr
	tcp  *tp.Connection
	dgm  *tp.Datagram

	status Status
	synced bool
}

// NewRemoteProcess wraps an already-dialed TCP connection, the local
// datagram socket used for best-effort sends, and the peer's UDP address.
// Inbound messages are handled by the owner of tcpConn, not by the proxy.
func NewRemoteProcess(name o2nm.Name, tcpConn *tp.Connection, dgm *tp.Datagram, udpAddr *net.UDPAddr) *RemoteProcess {
	return &RemoteProcess{
		name:   name,
		udp:    udpAddr,
		tcp:    tcpConn,
		dgm:    dgm,
		status: StatusConnecting,
	}
}

func (p *RemoteProcess) Send(msg *o2msg.Message, block bool) liberr.Error {
	p.mu.Lock()
	status := p.status
	p.mu.Unlock()

	if status == StatusClosed {
		return ErrorClosed.Error(nil)
	}

	if msg.IsTCP() {
		frame, err := msg.EncodeFrame()
		if err != nil {
			return err
		}
		if sendErr := p.tcp.Send(frame, block); sendErr != nil {
			return ErrorBlocked.ErrorParent(sendErr)
		}
		return nil
	}

	if p.dgm == nil || p.udp == nil {
		return ErrorNotConnected.Error(nil)
	}
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	if sendErr := p.dgm.SendTo(body, p.udp); sendErr != nil {
		return ErrorBlocked.ErrorParent(sendErr)
	}
	return nil
}

// LocalIsSynchronized reports whether the peer has announced clock sync.
// The owning process sets it when the peer's clock-synced message arrives.
func (p *RemoteProcess) LocalIsSynchronized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synced
}

// SetSynchronized records the peer's announced clock-sync state.
func (p *RemoteProcess) SetSynchronized(ok bool) {
	p.mu.Lock()
	p.synced = ok
	p.mu.Unlock()
}

// CanSend reports whether a single following reliable Send will be
// accepted without blocking or returning ErrorBlocked.
func (p *RemoteProcess) CanSend() bool {
	p.mu.Lock()
	status := p.status
	p.mu.Unlock()
	return status == StatusConnected && p.tcp != nil && p.tcp.CanSend()
}

// ScheduleBeforeSend is false: the peer runs its own global-time wheel and
// a timestamped message travels immediately.
func (p *RemoteProcess) ScheduleBeforeSend() bool { return false }

func (p *RemoteProcess) Deliver(msg *o2msg.Message) liberr.Error { return nil }

func (p *RemoteProcess) Connected() {
	p.mu.Lock()
	p.status = StatusConnected
	p.mu.Unlock()
}

func (p *RemoteProcess) Status() (Status, o2nm.Name) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.name
}

func (p *RemoteProcess) Close() liberr.Error {
	p.mu.Lock()
	if p.status == StatusClosed {
		p.mu.Unlock()
		return nil
	}
	p.status = StatusClosed
	p.mu.Unlock()

	return p.tcp.Close()
}
