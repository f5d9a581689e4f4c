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
	"log"

	"github.com/hashicorp/memberlist"
	liberr "github.com/sabouaram/o2/errors"
	liblog "github.com/sabouaram/o2/logger"
	loglvl "github.com/sabouaram/o2/logger/level"
	o2nm "github.com/sabouaram/o2/o2name"
)

// GossipConfig parameterizes the SWIM mesh that complements UDP broadcast
// on networks where broadcast is filtered. Seeds is the list of addresses
// to join through, typically the hub's host:port.
type GossipConfig struct {
	Ensemble string
	Self     o2nm.Name
	BindAddr string
	BindPort int
	Seeds    []string
	Logger   liblog.FuncLog
}

// LeaveFunc is invoked when a gossip member departs or is declared dead.
type LeaveFunc func(name o2nm.Name)

// Gossip wraps a memberlist instance whose node names are process names
// and whose node metadata carries the ensemble name, so membership events
// from foreign ensembles sharing the same mesh are ignored.
type Gossip struct {
	cfg     GossipConfig
	list    *memberlist.Memberlist
	onPeer  DiscoveredFunc
	onLeave LeaveFunc
}

type gossipDelegate struct {
	ensemble string
}

func (d *gossipDelegate) NodeMeta(limit int) []byte {
	meta := []byte(d.ensemble)
	if len(meta) > limit {
		meta = meta[:limit]
	}
	return meta
}

func (d *gossipDelegate) NotifyMsg([]byte)                           {}
func (d *gossipDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *gossipDelegate) LocalState(join bool) []byte                { return nil }
func (d *gossipDelegate) MergeRemoteState(buf []byte, join bool)     {}

type gossipEvents struct {
	g *Gossip
}

func (e *gossipEvents) NotifyJoin(n *memberlist.Node) {
	e.g.memberEvent(n, true)
}

func (e *gossipEvents) NotifyLeave(n *memberlist.Node) {
	e.g.memberEvent(n, false)
}

func (e *gossipEvents) NotifyUpdate(n *memberlist.Node) {}

func (g *Gossip) memberEvent(n *memberlist.Node, join bool) {
	if string(n.Meta) != g.cfg.Ensemble {
		return
	}

	name, err := o2nm.Parse(n.Name)
	if err != nil {
		return
	}
	if name == g.cfg.Self {
		return
	}

	if join {
		if g.onPeer != nil {
			g.onPeer(Announce{
				Ensemble: g.cfg.Ensemble,
				Public:   name.PublicIPHex(),
				Internal: name.InternalIPHex(),
				Port:     name.Port(),
				Flag:     FlagInfo,
			}, nil)
		}
	} else if g.onLeave != nil {
		g.onLeave(name)
	}
}

// NewGossip creates the mesh member and joins the configured seeds. An
// empty seed list is valid: the node then waits to be joined by others.
func NewGossip(cfg GossipConfig, onPeer DiscoveredFunc, onLeave LeaveFunc) (*Gossip, liberr.Error) {
	g := &Gossip{
		cfg:     cfg,
		onPeer:  onPeer,
		onLeave: onLeave,
	}

	mlc := memberlist.DefaultLANConfig()
	mlc.Name = cfg.Self.String()
	mlc.Delegate = &gossipDelegate{ensemble: cfg.Ensemble}
	mlc.Events = &gossipEvents{g: g}

	if cfg.BindAddr != "" {
		mlc.BindAddr = cfg.BindAddr
	}
	if cfg.BindPort > 0 {
		mlc.BindPort = cfg.BindPort
		mlc.AdvertisePort = cfg.BindPort
	}
	mlc.Logger = gossipLogger(cfg.Logger)

	list, e := memberlist.Create(mlc)
	if e != nil {
		return nil, ErrorGossipJoin.Error(e)
	}
	g.list = list

	if len(cfg.Seeds) > 0 {
		if _, e = list.Join(cfg.Seeds); e != nil {
			_ = list.Shutdown()
			return nil, ErrorGossipJoin.Error(e)
		}
	}

	return g, nil
}

// Members returns the process names of all live members of the ensemble.
func (g *Gossip) Members() []o2nm.Name {
	var out []o2nm.Name
	for _, n := range g.list.Members() {
		if string(n.Meta) != g.cfg.Ensemble {
			continue
		}
		if name, err := o2nm.Parse(n.Name); err == nil && name != g.cfg.Self {
			out = append(out, name)
		}
	}
	return out
}

// Close leaves the mesh and shuts the member down.
func (g *Gossip) Close() {
	if g.list != nil {
		_ = g.list.Shutdown()
	}
}

func gossipLogger(fct liblog.FuncLog) *log.Logger {
	if fct == nil {
		return nil
	}
	if lg := fct(); lg != nil {
		return lg.GetStdLogger(loglvl.DebugLevel, 0)
	}
	return nil
}
