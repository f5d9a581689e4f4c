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

package o2proc

import (
	"encoding/hex"
	"fmt"
	"net"

	libbr "github.com/sabouaram/o2/bridge"
	libdir "github.com/sabouaram/o2/directory"
	dsc "github.com/sabouaram/o2/discovery"
	liberr "github.com/sabouaram/o2/errors"
	loglvl "github.com/sabouaram/o2/logger/level"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
	libtree "github.com/sabouaram/o2/pathtree"
	px "github.com/sabouaram/o2/proxy"
	tp "github.com/sabouaram/o2/transport"
)

// registerControlHandlers installs every reserved-address handler into
// the process's tree and publishes the reserved services locally.
func (p *Process) registerControlHandlers() {
	handlers := map[string]libtree.Handler{
		AddressDiscSend:                          p.onDiscTimer,
		AddressClockPing:                         func(*o2msg.Message) liberr.Error { p.onPingTimer(); return nil },
		AddressClockRestore:                      p.onClockRestore,
		AddressClockSynced:                       p.onPeerSynced,
		AddressSv:                                p.onSv,
		AddressCsGet:                             p.onCsGet,
		AddressO2SmSv:                            p.bridgeProvide(libbr.TagSharedMem),
		AddressWsSv:                              p.bridgeProvide(libbr.TagWebSocket),
		"/" + p.name.String() + clockReplySuffix: p.onClockReply,
	}

	for path, h := range handlers {
		if err := p.tree.Register(path, h); err != nil {
			logWith(p.log, loglvl.ErrorLevel, "register %s: %v", path, err)
		}
	}

	// the process entry: every member owns a service named after itself
	_ = p.dir.ServiceProviderNew(p.name.String(), libdir.Provider{
		Process: p.name,
		Kind:    libdir.ProviderLocalHandlerTree,
		Handle:  p.tree,
	})
	_ = p.dir.ServiceProviderNew("_o2", libdir.Provider{
		Process: p.name,
		Kind:    libdir.ProviderLocalHandlerTree,
		Handle:  p.tree,
	})
}

// onDiscTimer re-broadcasts the process announcement and arms the next
// round of the backoff schedule.
func (p *Process) onDiscTimer(*o2msg.Message) liberr.Error {
	if p.lan == nil {
		return nil
	}
	if err := p.lan.Announce(); err != nil {
		logWith(p.log, loglvl.DebugLevel, "announce: %v", err)
	}
	p.scheduleLocal(AddressDiscSend, p.back.Next())
	return nil
}

// onSv applies a peer's service-list message, attaching the peer's proxy
// to every added provider.
func (p *Process) onSv(msg *o2msg.Message) liberr.Error {
	from, muts, err := ParseServiceMessage(msg)
	if err != nil {
		return err
	}

	var handle interface{}
	if pe := p.peer(from); pe != nil {
		handle = pe.prx
	}

	for _, m := range muts {
		if e := p.dir.ApplyRemote(m, handle); e != nil {
			logWith(p.log, loglvl.DebugLevel, "service list from %s: %v", from, e)
		}
	}
	return nil
}

// ---- peer table ----

func (p *Process) peer(name o2nm.Name) *peerEntry {
	if v, ok := p.peers.Load(name); ok {
		if pe, k := v.(*peerEntry); k {
			return pe
		}
	}
	return nil
}

func (p *Process) eachPeer(fct func(pe *peerEntry)) {
	p.peers.Walk(func(_ o2nm.Name, val interface{}) bool {
		if pe, ok := val.(*peerEntry); ok {
			fct(pe)
		}
		return true
	})
}

// addPeer installs the peer entry, its proxy, and its process-entry
// service, then sends the baseline snapshot and our clock state.
func (p *Process) addPeer(name o2nm.Name, conn *tp.Connection, hub bool) *peerEntry {
	udpDst := &net.UDPAddr{IP: hexToIP(name.InternalIPHex()), Port: int(name.Port())}
	prx := px.NewRemoteProcess(name, conn, p.udp, udpDst)
	prx.Connected()

	pe := &peerEntry{name: name, prx: prx, conn: conn, hub: hub}
	p.peers.Store(name, pe)
	peersGauge.Inc()

	_ = p.dir.ServiceProviderNew(name.String(), libdir.Provider{
		Process: name,
		Kind:    libdir.ProviderRemoteProcess,
		Handle:  prx,
	})

	_ = prx.Send(NewServiceMessage(p.name, SnapshotMutations(p.dir, p.name)), true)
	if p.IsSynced() {
		_ = prx.Send(NewClockSyncedMessage(p.name), true)
	}

	return pe
}

// removePeer erases every trace of a dead peer: its providers, its taps,
// its process entry, and its table row.
func (p *Process) removePeer(name o2nm.Name) {
	pe := p.peer(name)
	if pe == nil {
		return
	}

	p.peers.Delete(name)
	peersGauge.Dec()
	_ = pe.prx.Close()

	p.dir.RemoveServicesByProcess(name)
	p.dir.RemoveTapsByProcess(name)

	p.notify(libdir.StatusEvent{
		Service: name.String(),
		Status:  libdir.StatusGone,
		Process: name,
	})
	logWith(p.log, loglvl.InfoLevel, "peer %s disappeared", name)
}

// connClosed is the transport's hang-up callback, covering both peer and
// O2lite-client connections.
func (p *Process) connClosed(c *tp.Connection) {
	var victim o2nm.Name
	p.peers.Walk(func(key o2nm.Name, val interface{}) bool {
		if pe, ok := val.(*peerEntry); ok && pe.conn == c {
			victim = key
			return false
		}
		return true
	})

	if victim != o2nm.Empty {
		p.removePeer(victim)
		return
	}

	p.bridgeConnClosed(c)
}

// peerLeft handles a gossip departure event.
func (p *Process) peerLeft(name o2nm.Name) {
	p.removePeer(name)
}

// ---- discovery glue ----

// discovered reacts to a peer announcement: the greater name listens, the
// lesser name dials. When the announcement reaches the server side first,
// it opens a short-lived connection toward the client and asks it to call
// back in the client role.
func (p *Process) discovered(a dsc.Announce, _ *net.UDPAddr) {
	name := a.Name()
	if name == p.name || p.peer(name) != nil {
		return
	}

	if dsc.IsServer(p.name, name) {
		p.sendCallback(a)
		return
	}

	p.connectToPeer(name, dsc.FlagConnect)
}

// sendCallback opens a temporary connection to the lesser-named side and
// sends the callback announcement; the remote closes it and dials us back.
func (p *Process) sendCallback(a dsc.Announce) {
	addr := fmt.Sprintf("%s:%d", hexToIP(a.Internal), a.Port)

	conn, err := tp.Dial("tcp", addr, 0, func(*o2msg.Message) {}, nil)
	if err != nil {
		logWith(p.log, loglvl.DebugLevel, "callback dial %s: %v", addr, err)
		return
	}

	msg := dsc.NewAnnounceMessage(p.cfg.Ensemble, p.name, dsc.FlagCallback)
	msg.Flags = o2msg.FlagTCP
	if frame, e := msg.EncodeFrame(); e == nil {
		_ = conn.Send(frame, true)
	}
}

// connectToPeer dials the server-side peer and introduces this process
// with the given announcement flag.
func (p *Process) connectToPeer(name o2nm.Name, flag dsc.Flag) {
	addr := fmt.Sprintf("%s:%d", hexToIP(name.InternalIPHex()), name.Port())

	var c *tp.Connection
	c, err := tp.Dial("tcp", addr, 0, func(m *o2msg.Message) { p.inbound(c, m) }, p.connClosed)
	if err != nil {
		logWith(p.log, loglvl.DebugLevel, "dial %s: %v", addr, err)
		return
	}

	intro := dsc.NewAnnounceMessage(p.cfg.Ensemble, p.name, flag)
	intro.Flags = o2msg.FlagTCP
	if frame, e := intro.EncodeFrame(); e == nil {
		_ = c.Send(frame, true)
	}

	p.addPeer(name, c, flag == dsc.FlagHub)
}

// joinHub dials the named hub and asks it to bootstrap us.
func (p *Process) joinHub(addr string) {
	var c *tp.Connection
	c, err := tp.Dial("tcp", addr, 0, func(m *o2msg.Message) { p.inbound(c, m) }, p.connClosed)
	if err != nil {
		logWith(p.log, loglvl.WarnLevel, "hub dial %s: %v", addr, err)
		return
	}

	req := dsc.NewHubRequestMessage()
	if frame, e := req.EncodeFrame(); e == nil {
		_ = c.Send(frame, true)
	}

	intro := dsc.NewAnnounceMessage(p.cfg.Ensemble, p.name, dsc.FlagHub)
	intro.Flags = o2msg.FlagTCP
	if frame, e := intro.EncodeFrame(); e == nil {
		_ = c.Send(frame, true)
	}
}

// accepted wraps every inbound connection; the peer identifies itself
// with its first announcement.
func (p *Process) accepted(nc net.Conn) {
	var c *tp.Connection
	c = tp.NewConnection(nc, 0, func(m *o2msg.Message) { p.inbound(c, m) }, p.connClosed)
	socketsGauge.Inc()
	_ = c
}

// datagram handles one inbound UDP message: discovery announcements are
// fed to the pairing logic, everything else goes through the router.
func (p *Process) datagram(msg *o2msg.Message, from *net.UDPAddr) {
	if msg.Address == dsc.AddressDy {
		if a, err := dsc.ParseAnnounce(msg, p.cfg.Ensemble); err == nil {
			p.discovered(a, from)
		}
		return
	}
	p.route(msg)
}

// inbound handles one framed message from a peer TCP connection. The
// announcement and hub-request control paths need the connection itself;
// everything else is address-driven.
func (p *Process) inbound(c *tp.Connection, msg *o2msg.Message) {
	switch msg.Address {
	case dsc.AddressDy:
		p.inboundDy(c, msg)
	case dsc.AddressHub:
		p.inboundHub(c)
	case AddressSv:
		p.inboundSv(c, msg)
	case AddressO2LiteCon:
		p.inboundO2LiteCon(c)
	case AddressO2LiteSv:
		p.inboundO2LiteSv(c, msg)
	case AddressO2LiteCsGet:
		p.inboundO2LiteCsGet(c, msg)
	default:
		p.route(msg)
	}
}

// inboundSv binds a still-anonymous connection to the sender named inside
// the service-list message, then applies it. A hub's baseline snapshot
// can arrive before any announcement, so the first service list a
// connection carries is also its introduction.
func (p *Process) inboundSv(c *tp.Connection, msg *o2msg.Message) {
	if from, _, err := ParseServiceMessage(msg); err == nil {
		if p.peer(from) == nil {
			p.addPeer(from, c, false)
		}
	}
	_ = p.onSv(msg)
}

// route sends an inbound message to its handler: reserved services
// dispatch directly off the tree, user services go through the router so
// scheduling and taps apply.
func (p *Process) route(msg *o2msg.Message) {
	svc := msg.ServiceName()
	if svc == "_o2" || svc == ClockServiceName || svc == p.name.String() {
		p.dispatchControl(msg)
		return
	}
	_ = p.rt.Send(msg)
}

// inboundDy handles an announcement that arrived over TCP.
func (p *Process) inboundDy(c *tp.Connection, msg *o2msg.Message) {
	a, err := dsc.ParseAnnounce(msg, p.cfg.Ensemble)
	if err != nil {
		logWith(p.log, loglvl.DebugLevel, "announcement rejected: %v", err)
		return
	}
	name := a.Name()

	switch a.Flag {
	case dsc.FlagConnect:
		// the lesser-named side connected; bind its connection
		if p.peer(name) == nil {
			p.addPeer(name, c, false)
		}

	case dsc.FlagHub:
		// the remote asks us to be its hub: bind it, then replay every
		// known peer so it can run pairwise discovery against each
		pe := p.peer(name)
		if pe == nil {
			pe = p.addPeer(name, c, false)
		}

		reply := dsc.NewAnnounceMessage(p.cfg.Ensemble, p.name, dsc.FlagReply)
		reply.Flags = o2msg.FlagTCP
		_ = pe.prx.Send(reply, true)

		var known []o2nm.Name
		p.eachPeer(func(other *peerEntry) {
			if other.name != name {
				known = append(known, other.name)
			}
		})
		for _, m := range dsc.HubPeerList(p.cfg.Ensemble, known) {
			_ = pe.prx.Send(m, true)
		}

	case dsc.FlagReply:
		// first answer from our hub: the hub itself becomes a peer on
		// this connection
		if p.peer(name) == nil {
			p.addPeer(name, c, true)
		}

	case dsc.FlagCallback:
		// we hold the lesser name: drop this temporary socket and call
		// the server back as a client
		_ = c.Close()
		if p.peer(name) == nil {
			p.connectToPeer(name, dsc.FlagConnect)
		}

	case dsc.FlagInfo:
		// relayed third-party announcement (hub mode)
		p.discovered(a, nil)
	}
}

// inboundHub handles the bare hub request; the requester's identity
// arrives in its announcement, so nothing to do beyond logging until it
// does.
func (p *Process) inboundHub(*tp.Connection) {
	logWith(p.log, loglvl.DebugLevel, "hub role requested")
}

// broadcastMutation tells every connected peer about one local directory
// edit.
func (p *Process) broadcastMutation(m libdir.Mutation) {
	msg := NewServiceMessage(p.name, []libdir.Mutation{m})
	p.eachPeer(func(pe *peerEntry) {
		_ = pe.prx.Send(msg, true)
	})
}

// hexToIP decodes an 8-char hex IPv4 representation.
func hexToIP(h string) net.IP {
	b, err := hex.DecodeString(h)
	if err != nil || len(b) != 4 {
		return net.IPv4zero.To4()
	}
	return net.IP(b)
}
