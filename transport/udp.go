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

package transport

import (
	"net"
	"sync"

	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
)

// DatagramDeliverFunc receives one decoded UDP message along with the
// address it arrived from, for discovery and delegate traffic.
type DatagramDeliverFunc func(msg *o2msg.Message, from *net.UDPAddr)

// Datagram wraps one UDP socket used for discovery broadcast/reply traffic
// and OSC-delegate datagrams. Unlike Connection it has no length prefix —
// UDP datagrams are already message-delimited — and no send queue, since a
// dropped or short UDP write is simply a lost packet by design.
type Datagram struct {
	conn *net.UDPConn

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}

	deliver DatagramDeliverFunc
}

// ListenDatagram opens a UDP socket bound to addr (a zero Port picks an
// ephemeral port).
func ListenDatagram(addr *net.UDPAddr, deliver DatagramDeliverFunc) (*Datagram, liberr.Error) {
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, ErrorClosed.ErrorParent(err)
	}

	d := &Datagram{
		conn:    conn,
		closeCh: make(chan struct{}),
		deliver: deliver,
	}
	go d.readLoop()
	return d, nil
}

// LocalAddr returns the bound local address, including the ephemeral port
// the kernel assigned when the caller requested port 0.
func (d *Datagram) LocalAddr() *net.UDPAddr {
	return d.conn.LocalAddr().(*net.UDPAddr)
}

// SendTo writes one pre-encoded message body to dst. UDP sends never block
// on queue space — there is no queue — so there is no O2_BLOCKED case here.
func (d *Datagram) SendTo(body []byte, dst *net.UDPAddr) liberr.Error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrorClosed.Error(nil)
	}

	if _, err := d.conn.WriteToUDP(body, dst); err != nil {
		return ErrorClosed.ErrorParent(err)
	}
	return nil
}

// Close shuts the socket down. Idempotent.
func (d *Datagram) Close() liberr.Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	close(d.closeCh)

	if err := d.conn.Close(); err != nil {
		return ErrorClosed.ErrorParent(err)
	}
	return nil
}

func (d *Datagram) readLoop() {
	buf := make([]byte, DefaultMaxFrame)
	for {
		n, from, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		body := make([]byte, n)
		copy(body, buf[:n])

		// UDP datagrams carry the bare Encode() payload (no length prefix,
		// no flags word — see o2msg.Message.Encode's doc comment).
		msg, decErr := o2msg.Decode(body)
		if decErr != nil {
			continue
		}
		if d.deliver != nil {
			d.deliver(msg, from)
		}
	}
}
