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
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
	px "github.com/sabouaram/o2/proxy"
)

// TagBroker is the 8-char protocol tag for the wide-area broker bridge.
const TagBroker = "O2mqtt"

// discSubject and peerSubject mirror the broker topics
// "O2-<ensemble>/disc" and "O2-<ensemble>/<peer-name>" one-for-one, as
// NATS subjects.
func discSubject(ensemble string) string { return fmt.Sprintf("O2-%s.disc", ensemble) }
func peerSubject(ensemble string, name o2nm.Name) string {
	return fmt.Sprintf("O2-%s.%s", ensemble, string(name))
}

// Broker is a bridge Instance for one peer reached over the shared NATS
// subject space rather than direct TCP, used when the two processes do not
// share a public IP.
type Broker struct {
	ensemble string
	self     o2nm.Name
	peer     o2nm.Name

	nc  *nats.Conn
	sub *nats.Subscription

	mu     sync.Mutex
	status px.Status

	deliver func(msg *o2msg.Message)
}

// NewBroker subscribes to this process's own subject (built from self), on
// which peers publish toward it, and returns a Broker ready to publish on
// the peer's subject; the peer subscribes to its own name symmetrically.
func NewBroker(nc *nats.Conn, ensemble string, self, peer o2nm.Name, deliver func(msg *o2msg.Message)) (*Broker, liberr.Error) {
	b := &Broker{ensemble: ensemble, self: self, peer: peer, nc: nc, status: px.StatusConnecting, deliver: deliver}

	sub, err := nc.Subscribe(peerSubject(ensemble, self), b.onMessage)
	if err != nil {
		return nil, ErrorInstanceClosed.ErrorParent(err)
	}
	b.sub = sub
	return b, nil
}

// AnnounceDiscovery publishes this process's name plus a "/dy" or "/cs"
// suffix to the shared discovery subjectd.
func AnnounceDiscovery(nc *nats.Conn, ensemble string, self o2nm.Name, clockSynced bool) liberr.Error {
	suffix := "/dy"
	if clockSynced {
		suffix = "/cs"
	}
	if err := nc.Publish(discSubject(ensemble), []byte(string(self)+suffix)); err != nil {
		return ErrorInstanceClosed.ErrorParent(err)
	}
	return nil
}

// SubscribeDiscovery subscribes to the shared discovery subject, invoking
// onPeer for every announcement this process observes.
func SubscribeDiscovery(nc *nats.Conn, ensemble string, onPeer func(payload string)) (*nats.Subscription, liberr.Error) {
	sub, err := nc.Subscribe(discSubject(ensemble), func(m *nats.Msg) {
		onPeer(string(m.Data))
	})
	if err != nil {
		return nil, ErrorInstanceClosed.ErrorParent(err)
	}
	return sub, nil
}

func (b *Broker) onMessage(m *nats.Msg) {
	msg, err := o2msg.Decode(m.Data)
	if err != nil {
		return
	}
	if b.deliver != nil {
		b.deliver(msg)
	}
}

func (b *Broker) Tag() string { return TagBroker }

func (b *Broker) Send(msg *o2msg.Message, block bool) liberr.Error {
	b.mu.Lock()
	status := b.status
	b.mu.Unlock()
	if status == px.StatusClosed {
		return ErrorInstanceClosed.Error(nil)
	}

	body, encErr := msg.Encode()
	if encErr != nil {
		return encErr
	}

	if pubErr := b.nc.Publish(peerSubject(b.ensemble, b.peer), body); pubErr != nil {
		return ErrorQueueFull.ErrorParent(pubErr)
	}
	return nil
}

// LocalIsSynchronized always reports false: a Broker does not track the
// peer's "/cs" announcement, so the router treats this service as
// "bridge-notime".
func (b *Broker) LocalIsSynchronized() bool { return false }
func (b *Broker) ScheduleBeforeSend() bool  { return true }

func (b *Broker) Deliver(msg *o2msg.Message) liberr.Error { return nil }

func (b *Broker) Connected() {
	b.mu.Lock()
	b.status = px.StatusConnected
	b.mu.Unlock()
}

func (b *Broker) Status() (px.Status, o2nm.Name) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status, b.peer
}

func (b *Broker) Close() liberr.Error {
	b.mu.Lock()
	if b.status == px.StatusClosed {
		b.mu.Unlock()
		return nil
	}
	b.status = px.StatusClosed
	b.mu.Unlock()

	if err := b.sub.Unsubscribe(); err != nil {
		return ErrorInstanceClosed.ErrorParent(err)
	}
	return nil
}

// Poll is a no-op: NATS delivers subscription callbacks on its own
// goroutines, asynchronously of the protocol's per-tick Poll.
func (b *Broker) Poll(now float64) {}
