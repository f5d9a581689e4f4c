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

package discovery

import (
	"net"
	"sync/atomic"

	liberr "github.com/sabouaram/o2/errors"
	liblog "github.com/sabouaram/o2/logger"
	loglvl "github.com/sabouaram/o2/logger/level"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
)

// DiscoveredFunc is invoked for every valid announcement received from a
// peer of the same ensemble. from is the datagram's source address, nil
// when the announcement arrived through a non-UDP channel.
type DiscoveredFunc func(a Announce, from *net.UDPAddr)

// LAN owns the broadcast half of discovery: a UDP socket bound to the
// first free well-known port, a re-announce backoff, and a read loop that
// parses inbound announcements and hands them to the owner.
type LAN struct {
	ensemble string
	self     o2nm.Name
	conn     *net.UDPConn
	index    int
	back     *Backoff
	onPeer   DiscoveredFunc
	log      liblog.FuncLog
	closed   atomic.Bool
}

// NewLAN binds the first available well-known port and starts reading
// announcements. The caller drives re-announcement by scheduling Announce
// at the delays NextDelay returns.
func NewLAN(ensemble string, self o2nm.Name, onPeer DiscoveredFunc, log liblog.FuncLog) (*LAN, liberr.Error) {
	conn, idx, err := BindFirstAvailable()
	if err != nil {
		return nil, err
	}

	l := &LAN{
		ensemble: ensemble,
		self:     self,
		conn:     conn,
		index:    idx,
		back:     NewBackoff(),
		onPeer:   onPeer,
		log:      log,
	}

	go l.readLoop()
	return l, nil
}

// PortIndex returns the position of the bound port in the well-known list.
func (l *LAN) PortIndex() int {
	return l.index
}

// Port returns the UDP port the process is listening on.
func (l *LAN) Port() int {
	return WellKnownPorts[l.index]
}

// NextDelay returns the seconds to wait before the next Announce call and
// advances the backoff.
func (l *LAN) NextDelay() float64 {
	return l.back.Next()
}

// Announce broadcasts the process's own announcement to every well-known
// port up to and including its own index. Individual send failures are
// logged and skipped; only a fully dead socket is reported.
func (l *LAN) Announce() liberr.Error {
	msg := NewAnnounceMessage(l.ensemble, l.self, FlagInfo)

	body, err := msg.Encode()
	if err != nil {
		return err
	}

	var sent bool
	for i := 0; i <= l.index; i++ {
		dst := &net.UDPAddr{IP: net.IPv4bcast, Port: WellKnownPorts[i]}
		if _, e := l.conn.WriteToUDP(body, dst); e != nil {
			l.logEntry(loglvl.DebugLevel, "broadcast to port %d failed: %v", WellKnownPorts[i], e)
			continue
		}
		sent = true
	}

	if !sent {
		return ErrorBroadcastSend.Error(nil)
	}
	return nil
}

// SendTo sends the process's own announcement, carrying the given flag,
// to one specific peer address. Used for callback and hub replies.
func (l *LAN) SendTo(f Flag, dst *net.UDPAddr) liberr.Error {
	msg := NewAnnounceMessage(l.ensemble, l.self, f)

	body, err := msg.Encode()
	if err != nil {
		return err
	}

	if _, e := l.conn.WriteToUDP(body, dst); e != nil {
		return ErrorBroadcastSend.Error(e)
	}
	return nil
}

// Close shuts the broadcast socket down. Idempotent.
func (l *LAN) Close() {
	if l.closed.CompareAndSwap(false, true) {
		_ = l.conn.Close()
	}
}

func (l *LAN) readLoop() {
	buf := make([]byte, 65536)

	for {
		n, from, e := l.conn.ReadFromUDP(buf)
		if e != nil {
			if !l.closed.Load() {
				l.logEntry(loglvl.ErrorLevel, "discovery socket read: %v", e)
			}
			return
		}

		msg, err := o2msg.Decode(buf[:n])
		if err != nil || msg.Address != AddressDy {
			continue
		}

		a, err := ParseAnnounce(msg, l.ensemble)
		if err != nil {
			continue
		}

		if a.Name() == l.self {
			continue
		}

		if l.onPeer != nil {
			l.onPeer(a, from)
		}
	}
}

func (l *LAN) logEntry(lvl loglvl.Level, pattern string, args ...interface{}) {
	if l.log == nil {
		return
	}
	if lg := l.log(); lg != nil {
		lg.Entry(lvl, pattern, args...).Log()
	}
}
