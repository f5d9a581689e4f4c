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
	"github.com/nats-io/nats.go"
	libbr "github.com/sabouaram/o2/bridge"
	libdir "github.com/sabouaram/o2/directory"
	dsc "github.com/sabouaram/o2/discovery"
	liberr "github.com/sabouaram/o2/errors"
	loglvl "github.com/sabouaram/o2/logger/level"
)

// brokerState holds the process's connection to the wide-area broker and
// its discovery subscription. The bridge instances standing in for peers
// reachable only through the broker live in the process's bridge registry.
type brokerState struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

// startBroker connects to the configured broker, subscribes to the shared
// discovery subject, and announces this process.
func (p *Process) startBroker(url string) liberr.Error {
	nc, err := nats.Connect(url)
	if err != nil {
		return ErrorNoNetwork.ErrorParent(err)
	}

	sub, e := libbr.SubscribeDiscovery(nc, p.cfg.Ensemble, p.brokerPeerSeen)
	if e != nil {
		nc.Close()
		return e
	}

	p.broker = &brokerState{nc: nc, sub: sub}
	return libbr.AnnounceDiscovery(nc, p.cfg.Ensemble, p.name, p.IsSynced())
}

// brokerPeerSeen categorizes one broker discovery payload: a peer on the
// same site upgrades to direct TCP through normal pairing; anything else
// is reached through a broker bridge instance.
func (p *Process) brokerPeerSeen(payload string) {
	peer, err := dsc.ParseBrokerPayload(payload)
	if err != nil {
		logWith(p.log, loglvl.DebugLevel, "broker discovery: %v", err)
		return
	}
	if peer.Name == p.name || p.peer(peer.Name) != nil {
		return
	}

	if dsc.Categorize(p.name, peer.Name) == dsc.RouteDirect {
		p.discovered(dsc.Announce{
			Ensemble: p.cfg.Ensemble,
			Public:   peer.Name.PublicIPHex(),
			Internal: peer.Name.InternalIPHex(),
			Port:     peer.Name.Port(),
			Flag:     dsc.FlagInfo,
		}, nil)
		return
	}

	if _, _, ok := p.dir.ServiceFind(peer.Name.String()); ok {
		return
	}

	br, e := libbr.NewBroker(p.broker.nc, p.cfg.Ensemble, p.name, peer.Name, p.route)
	if e != nil {
		logWith(p.log, loglvl.WarnLevel, "broker bridge to %s: %v", peer.Name, e)
		return
	}
	br.Connected()

	if e = p.BridgeInstanceNew(peer.Name.String(), br); e != nil {
		logWith(p.log, loglvl.DebugLevel, "broker instance %s: %v", peer.Name, e)
	}
	if peer.ClockSynced {
		// brokered peers report sync through their announcement
		logWith(p.log, loglvl.DebugLevel, "brokered peer %s is clock-synced", peer.Name)
	}

	_ = p.dir.ServiceProviderNew(peer.Name.String(), libdir.Provider{
		Process: peer.Name,
		Kind:    libdir.ProviderBridge,
		Handle:  br,
	})
}

// stopBroker drops the broker subscription and connection.
func (p *Process) stopBroker() {
	if p.broker == nil {
		return
	}
	if p.broker.sub != nil {
		_ = p.broker.sub.Unsubscribe()
	}
	if p.broker.nc != nil {
		p.broker.nc.Close()
	}
	p.broker = nil
}
