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
	"encoding/binary"
	"io"
	"net"
	"sync"

	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
)

// DefaultMaxQueue bounds the number of framed messages a Connection will
// hold before Send reports ErrorBlocked O2_BLOCKED semantics.
const DefaultMaxQueue = 256

// DefaultMaxFrame bounds inbound frame size as a sanity check against a
// corrupt or hostile length prefix.
const DefaultMaxFrame = 1 << 24

// DeliverFunc receives one fully decoded inbound message.
type DeliverFunc func(msg *o2msg.Message)

// CloseFunc is called exactly once when a Connection's transport goes away,
// whether via explicit Close or a read/write error.
type CloseFunc func(c *Connection)

// Connection wraps one TCP socket in the non-blocking core described in
// use: a bounded send queue drained by a dedicated writer
// goroutine, and a reader goroutine that decodes length-prefixed frames and
// invokes DeliverFunc. Goroutines and channels stand in for a
// single-threaded poll loop's non-blocking write buffering.
type Connection struct {
	conn    net.Conn
	sendCh  chan []byte
	closeCh chan struct{}
	once    sync.Once

	deliver DeliverFunc
	onClose CloseFunc

	mu       sync.Mutex
	closed   bool
	maxFrame int
}

// NewConnection wraps an already-established net.Conn (from Dial or
// Accept) and starts its reader/writer goroutines. maxQueue <= 0 uses
// DefaultMaxQueue.
func NewConnection(conn net.Conn, maxQueue int, deliver DeliverFunc, onClose CloseFunc) *Connection {
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}

	c := &Connection{
		conn:     conn,
		sendCh:   make(chan []byte, maxQueue),
		closeCh:  make(chan struct{}),
		deliver:  deliver,
		onClose:  onClose,
		maxFrame: DefaultMaxFrame,
	}

	go c.writeLoop()
	go c.readLoop()

	return c
}

// Dial opens a new TCP connection to addr and wraps it.
func Dial(network, addr string, maxQueue int, deliver DeliverFunc, onClose CloseFunc) (*Connection, liberr.Error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, ErrorClosed.ErrorParent(err)
	}
	return NewConnection(conn, maxQueue, deliver, onClose), nil
}

// RemoteAddr returns the peer address string, or "" when there is no
// underlying conn. The address is still reported after Close.
func (c *Connection) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Send enqueues a pre-framed message (as produced by o2msg.Message.EncodeFrame)
// for the writer goroutine. When block is false (the normal case) a full
// queue returns ErrorBlocked immediately instead of waiting. When block
// is true, Send falls back to a blocking enqueue, the one sanctioned
// blocking call, used when the caller has no way to defer the message
// itself.
func (c *Connection) Send(frame []byte, block bool) liberr.Error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrorClosed.Error(nil)
	}

	if block {
		select {
		case c.sendCh <- frame:
			return nil
		case <-c.closeCh:
			return ErrorClosed.Error(nil)
		}
	}

	select {
	case c.sendCh <- frame:
		return nil
	case <-c.closeCh:
		return ErrorClosed.Error(nil)
	default:
		return ErrorBlocked.Error(nil)
	}
}

// CanSend reports whether one further non-blocking Send will be accepted
// without returning ErrorBlocked.
func (c *Connection) CanSend() bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	return !closed && len(c.sendCh) < cap(c.sendCh)
}

// QueueDepth reports how many frames are currently queued to be written,
// useful for diagnostics and tests.
func (c *Connection) QueueDepth() int {
	return len(c.sendCh)
}

// Close tears down the connection. Idempotent: a second call is a no-op,
// and closing is idempotent.
func (c *Connection) Close() liberr.Error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.closeCh)
		err = c.conn.Close()

		if c.onClose != nil {
			c.onClose(c)
		}
	})
	if err != nil {
		return ErrorClosed.ErrorParent(err)
	}
	return nil
}

func (c *Connection) writeLoop() {
	for {
		select {
		case frame := <-c.sendCh:
			if _, err := c.conn.Write(frame); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

func (c *Connection) readLoop() {
	defer func() { _ = c.Close() }()

	lenBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(c.conn, lenBuf); err != nil {
			return
		}

		n := binary.BigEndian.Uint32(lenBuf)
		if int(n) > c.maxFrame {
			return
		}

		body := make([]byte, n)
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return
		}

		msg, decErr := o2msg.DecodeFrame(body)
		if decErr != nil {
			continue
		}
		if c.deliver != nil {
			c.deliver(msg)
		}
	}
}
