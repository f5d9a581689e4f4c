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
	"sync/atomic"

	liberr "github.com/sabouaram/o2/errors"
)

// AcceptFunc receives each accepted raw connection. The owner decides how
// to wrap it (NewConnection with its own DeliverFunc) and keeps the result.
type AcceptFunc func(conn net.Conn)

// Listener accepts inbound peer connections on the process's TCP port.
type Listener struct {
	ln     net.Listener
	accept AcceptFunc
	closed atomic.Bool
}

// Listen binds addr ("host:port", port 0 picks an ephemeral one) and
// starts accepting. Each accepted connection is handed to accept.
func Listen(addr string, accept AcceptFunc) (*Listener, liberr.Error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ErrorListen.ErrorParent(err)
	}

	l := &Listener{ln: ln, accept: accept}
	go l.acceptLoop()
	return l, nil
}

// Port returns the bound TCP port.
func (l *Listener) Port() uint16 {
	if a, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return uint16(a.Port)
	}
	return 0
}

// Close stops accepting. Idempotent; established connections are not
// touched.
func (l *Listener) Close() liberr.Error {
	if l.closed.CompareAndSwap(false, true) {
		if err := l.ln.Close(); err != nil {
			return ErrorClosed.ErrorParent(err)
		}
	}
	return nil
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		l.accept(conn)
	}
}
