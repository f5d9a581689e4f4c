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
	libbr "github.com/sabouaram/o2/bridge"
	libdir "github.com/sabouaram/o2/directory"
	liberr "github.com/sabouaram/o2/errors"
	loglvl "github.com/sabouaram/o2/logger/level"
	o2msg "github.com/sabouaram/o2/o2msg"
	tp "github.com/sabouaram/o2/transport"
)

// Reserved addresses of the bridge framework. Lightweight O2lite clients
// drive their half of the protocol over their own TCP connection; the
// shared-memory and WebSocket variants announce services for instances
// already registered through the API.
const (
	// AddressO2LiteCon is an O2lite client's first message: it turns the
	// plain connection it arrived on into a bridge instance.
	AddressO2LiteCon = "/_o2/o2lite/con"
	// AddressO2LiteSv announces one service provided by the sending
	// O2lite client.
	AddressO2LiteSv = "/_o2/o2lite/sv"
	// AddressO2LiteCsGet asks the host for its global time.
	AddressO2LiteCsGet = "/_o2/o2lite/cs/get"
	// AddressO2SmSv announces (instance, service) for a registered
	// shared-memory helper.
	AddressO2SmSv = "/_o2/o2sm/sv"
	// AddressWsSv announces (instance, service) for a registered
	// WebSocket client.
	AddressWsSv = "/_o2/ws/sv"
)

// registerBridgeProtocols pre-registers every built-in transport so
// instances can be added without racing on first use.
func (p *Process) registerBridgeProtocols() {
	for _, tag := range []string{libbr.TagO2Lite, libbr.TagSharedMem, libbr.TagWebSocket, libbr.TagBroker} {
		if _, err := p.bridges.Register(tag); err != nil {
			logWith(p.log, loglvl.ErrorLevel, "bridge protocol %s: %v", tag, err)
		}
	}
}

// Bridges exposes the protocol registry, mainly so helper threads and
// embedded clients can be attached before the first Poll.
func (p *Process) Bridges() *libbr.Registry {
	return p.bridges
}

// BridgeInstanceNew adds inst to its protocol's instance table under id.
// Every following Poll drains it.
func (p *Process) BridgeInstanceNew(id string, inst libbr.Instance) liberr.Error {
	proto, err := p.bridges.Protocol(inst.Tag())
	if err != nil {
		return err
	}
	proto.Add(id, inst)
	return nil
}

// BridgeServiceNew installs service as provided through the bridge
// instance (tag, id), and tells every peer.
func (p *Process) BridgeServiceNew(tag, id, service string) liberr.Error {
	proto, err := p.bridges.Protocol(tag)
	if err != nil {
		return err
	}

	inst, ok := proto.Get(id)
	if !ok {
		return ErrorPeerUnknown.Error(nil)
	}

	if err = p.dir.ServiceProviderNew(service, libdir.Provider{
		Process: p.name,
		Kind:    libdir.ProviderBridge,
		Handle:  inst,
	}); err != nil {
		return err
	}

	p.rememberBridgeService(tag, id, service)
	p.broadcastMutation(libdir.Mutation{
		Kind:    libdir.MutationAddService,
		Service: service,
		Process: p.name,
	})
	return nil
}

// BridgeInstanceClose withdraws an instance and every service it
// provided.
func (p *Process) BridgeInstanceClose(tag, id string) {
	proto, err := p.bridges.Protocol(tag)
	if err != nil {
		return
	}

	if inst, ok := proto.Get(id); ok {
		_ = inst.Close()
	}
	proto.Remove(id)

	key := bridgeKey(tag, id)
	if v, ok := p.bridgeSvcs.LoadAndDelete(key); ok {
		if svcs, k := v.([]string); k {
			for _, svc := range svcs {
				if err := p.dir.ServiceRemove(svc, p.name); err == nil {
					p.broadcastMutation(libdir.Mutation{
						Kind:    libdir.MutationRemoveService,
						Service: svc,
						Process: p.name,
					})
				}
			}
		}
	}
}

func bridgeKey(tag, id string) string {
	return tag + "/" + id
}

func (p *Process) rememberBridgeService(tag, id, service string) {
	key := bridgeKey(tag, id)

	var svcs []string
	if v, ok := p.bridgeSvcs.Load(key); ok {
		svcs, _ = v.([]string)
	}
	p.bridgeSvcs.Store(key, append(svcs, service))
}

// bridgeProvide serves the /_o2/o2sm/sv and /_o2/ws/sv announcements:
// (instance id, service) for a protocol implied by the address.
func (p *Process) bridgeProvide(tag string) func(msg *o2msg.Message) liberr.Error {
	return func(msg *o2msg.Message) liberr.Error {
		if len(msg.Args) != 2 || msg.Args[0].Type != 's' || msg.Args[1].Type != 's' {
			return ErrorBadControl.Error(nil)
		}
		return p.BridgeServiceNew(tag, msg.Args[0].S, msg.Args[1].S)
	}
}

// ---- O2lite: lightweight clients over their own TCP connection ----

// inboundO2LiteCon promotes the connection an embedded client sent its
// hello over into an O2lite bridge instance.
func (p *Process) inboundO2LiteCon(c *tp.Connection) {
	id := c.RemoteAddr()
	inst := libbr.NewO2Lite(p.name, c)
	inst.Connected()

	if err := p.BridgeInstanceNew(id, inst); err != nil {
		logWith(p.log, loglvl.WarnLevel, "o2lite %s: %v", id, err)
		return
	}
	logWith(p.log, loglvl.InfoLevel, "o2lite client %s attached", id)
}

// inboundO2LiteSv installs a service announced by the sending client.
func (p *Process) inboundO2LiteSv(c *tp.Connection, msg *o2msg.Message) {
	if len(msg.Args) != 1 || msg.Args[0].Type != 's' {
		logWith(p.log, loglvl.DebugLevel, "malformed o2lite service announcement")
		return
	}
	if err := p.BridgeServiceNew(libbr.TagO2Lite, c.RemoteAddr(), msg.Args[0].S); err != nil {
		logWith(p.log, loglvl.DebugLevel, "o2lite service %s: %v", msg.Args[0].S, err)
	}
}

// inboundO2LiteCsGet answers an embedded client's time request through
// its own instance.
func (p *Process) inboundO2LiteCsGet(c *tp.Connection, msg *o2msg.Message) {
	seq, replyTo, err := ParseClockRequest(msg)
	if err != nil {
		return
	}

	proto, err := p.bridges.Protocol(libbr.TagO2Lite)
	if err != nil {
		return
	}
	inst, ok := proto.Get(c.RemoteAddr())
	if !ok {
		return
	}

	reply := NewClockReplyMessage(replyTo, seq, p.globalNow())
	reply.Flags = o2msg.FlagTCP
	_ = inst.Send(reply, true)
}

// bridgeConnClosed drops the O2lite instance bound to a hung-up
// connection, if any. Reports whether the connection belonged to one.
func (p *Process) bridgeConnClosed(c *tp.Connection) bool {
	proto, err := p.bridges.Protocol(libbr.TagO2Lite)
	if err != nil {
		return false
	}

	id := c.RemoteAddr()
	if _, ok := proto.Get(id); !ok {
		return false
	}

	p.BridgeInstanceClose(libbr.TagO2Lite, id)
	logWith(p.log, loglvl.InfoLevel, "o2lite client %s detached", id)
	return true
}
