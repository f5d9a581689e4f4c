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
	"sync"

	"golang.org/x/net/websocket"

	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
	px "github.com/sabouaram/o2/proxy"
)

// TagWebSocket is the 8-char protocol tag for the WebSocket bridge.
const TagWebSocket = "O2ws"

// WebSocket is a bridge Instance for a browser or other WebSocket client.
// HTTP upgrade handling is delegated to the websocket package (explicit
// non-goal); this type only owns the *websocket.Conn an http.Handler hands
// it after the upgrade completes, and frames O2 messages as binary
// WebSocket frames, one message per frame — no length prefix, since the
// WebSocket protocol already delimits frames.
type WebSocket struct {
	name o2nm.Name
	conn *websocket.Conn

	mu     sync.Mutex
	status px.Status

	deliver func(msg *o2msg.Message)
}

// NewWebSocket wraps an upgraded connection. deliver is invoked from a
// reader goroutine for each complete inbound message.
func NewWebSocket(name o2nm.Name, conn *websocket.Conn, deliver func(msg *o2msg.Message)) *WebSocket {
	w := &WebSocket{name: name, conn: conn, status: px.StatusConnecting, deliver: deliver}
	go w.readLoop()
	return w
}

func (w *WebSocket) Tag() string { return TagWebSocket }

func (w *WebSocket) Send(msg *o2msg.Message, block bool) liberr.Error {
	w.mu.Lock()
	status := w.status
	w.mu.Unlock()
	if status == px.StatusClosed {
		return ErrorInstanceClosed.Error(nil)
	}

	body, err := msg.Encode()
	if err != nil {
		return err
	}

	if sendErr := websocket.Message.Send(w.conn, body); sendErr != nil {
		return ErrorQueueFull.ErrorParent(sendErr)
	}
	return nil
}

// LocalIsSynchronized is always false: the WebSocket bridge runs no clock
// handshake with its client.
func (w *WebSocket) LocalIsSynchronized() bool { return false }
func (w *WebSocket) ScheduleBeforeSend() bool  { return true }

func (w *WebSocket) Deliver(msg *o2msg.Message) liberr.Error { return nil }

func (w *WebSocket) Connected() {
	w.mu.Lock()
	w.status = px.StatusConnected
	w.mu.Unlock()
}

func (w *WebSocket) Status() (px.Status, o2nm.Name) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status, w.name
}

func (w *WebSocket) Close() liberr.Error {
	w.mu.Lock()
	if w.status == px.StatusClosed {
		w.mu.Unlock()
		return nil
	}
	w.status = px.StatusClosed
	w.mu.Unlock()

	if err := w.conn.Close(); err != nil {
		return ErrorInstanceClosed.ErrorParent(err)
	}
	return nil
}

// Poll is a no-op: readLoop already delivers inbound messages as they
// arrive.
func (w *WebSocket) Poll(now float64) {}

func (w *WebSocket) readLoop() {
	for {
		var body []byte
		if err := websocket.Message.Receive(w.conn, &body); err != nil {
			_ = w.Close()
			return
		}

		msg, decErr := o2msg.Decode(body)
		if decErr != nil {
			continue
		}
		if w.deliver != nil {
			w.deliver(msg)
		}
	}
}
