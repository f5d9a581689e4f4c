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
	"context"
	"net"
	"strings"
	"time"

	libatm "github.com/sabouaram/o2/atomic"
	libbr "github.com/sabouaram/o2/bridge"
	libck "github.com/sabouaram/o2/clocksync"
	libctx "github.com/sabouaram/o2/context"
	libdir "github.com/sabouaram/o2/directory"
	dsc "github.com/sabouaram/o2/discovery"
	liberr "github.com/sabouaram/o2/errors"
	errpol "github.com/sabouaram/o2/errors/pool"
	liblog "github.com/sabouaram/o2/logger"
	loglvl "github.com/sabouaram/o2/logger/level"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
	libtree "github.com/sabouaram/o2/pathtree"
	px "github.com/sabouaram/o2/proxy"
	librt "github.com/sabouaram/o2/router"
	libsch "github.com/sabouaram/o2/scheduler"
	tp "github.com/sabouaram/o2/transport"
	"golang.org/x/sync/semaphore"
)

// ServiceStatus is the user-visible state of a service name.
type ServiceStatus int

const (
	StatusUnknown ServiceStatus = iota
	StatusLocalNoTime
	StatusRemoteNoTime
	StatusBridgeNoTime
	StatusOscNoTime
	StatusLocal
	StatusRemote
	StatusBridge
	StatusOsc
)

// StatusFunc receives the internal status-change notifications a user can
// subscribe to.
type StatusFunc func(evt libdir.StatusEvent)

// peerEntry is one row of the process table.
type peerEntry struct {
	name o2nm.Name
	prx  *px.RemoteProcess
	conn *tp.Connection
	hub  bool
}

// Process is one O2 ensemble member: its name, directory replica, both
// schedulers, the clock state, the transports, and the discovery engines.
type Process struct {
	cfg  Config
	name o2nm.Name
	log  liblog.FuncLog

	peers libctx.Config[o2nm.Name]
	dir   *libdir.Directory
	tree  *libtree.Tree
	rt    *librt.Router

	bridges    *libbr.Registry
	bridgeSvcs libctx.Config[string]

	schedLocal  *libsch.Wheel
	schedGlobal *libsch.Wheel
	clock       libatm.Value[*libck.ClockSync]

	listener *tp.Listener
	udp      *tp.Datagram
	lan      *dsc.LAN
	gossip   *dsc.Gossip
	broker   *brokerState

	guard *semaphore.Weighted
	epoch time.Time

	si    StatusFunc
	back  *dsc.Backoff
	drops errpol.Pool

	pingCount int
	pingStart float64
	pinging   bool
}

// New builds and starts a process: it resolves the local addresses, binds
// the TCP and UDP ports, assembles the directory/router/scheduler core,
// registers the reserved-address handlers, and kicks off discovery.
func New(ctx context.Context, cfg Config) (*Process, liberr.Error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	internal, err := InternalIP()
	if err != nil {
		return nil, err
	}

	public, err := ResolvePublicAddress(cfg.StunServer, cfg.StunTimeout.Time(), cfg.GetLogger())
	if err != nil {
		// LAN-only is a valid mode, not a failure.
		logWith(cfg.GetLogger(), loglvl.InfoLevel, "continuing LAN-only: %v", err)
	}

	p := &Process{
		cfg:         cfg,
		log:         cfg.GetLogger(),
		peers:       libctx.New[o2nm.Name](ctx),
		bridges:     libbr.NewRegistry(),
		bridgeSvcs:  libctx.New[string](ctx),
		tree:        libtree.New(),
		schedLocal:  libsch.NewLocal(),
		schedGlobal: libsch.NewGlobal(),
		clock:       libatm.NewValue[*libck.ClockSync](),
		guard:       semaphore.NewWeighted(1),
		epoch:       time.Now(),
		back:        dsc.NewBackoff(),
		drops:       errpol.New(),
	}
	p.clock.Store(libck.NewPending())
	p.dir = libdir.New(procNotifier{p: p})
	p.rt = librt.New(p.dir, p.schedGlobal, p.globalNow, p.warnDrop)
	p.registerBridgeProtocols()

	addr := cfg.ListenAddr
	if addr == "" {
		addr = ":0"
	}
	if p.listener, err = tp.Listen(addr, p.accepted); err != nil {
		return nil, err
	}

	p.name = o2nm.New(public, internal, p.listener.Port())

	if p.udp, err = tp.ListenDatagram(&net.UDPAddr{Port: int(p.listener.Port())}, p.datagram); err != nil {
		_ = p.listener.Close()
		return nil, err
	}

	p.registerControlHandlers()

	if !cfg.DisableBroadcast {
		if p.lan, err = dsc.NewLAN(cfg.Ensemble, p.name, p.discovered, p.log); err != nil {
			p.closeTransports()
			return nil, err
		}
		p.scheduleLocal(AddressDiscSend, p.back.Next())
	}

	if len(cfg.GossipSeeds) > 0 {
		gc := dsc.GossipConfig{
			Ensemble: cfg.Ensemble,
			Self:     p.name,
			Seeds:    cfg.GossipSeeds,
			Logger:   p.log,
		}
		if p.gossip, err = dsc.NewGossip(gc, p.discovered, p.peerLeft); err != nil {
			logWith(p.log, loglvl.WarnLevel, "gossip mesh unavailable: %v", err)
		}
	}

	if cfg.BrokerURL != "" {
		if err = p.startBroker(cfg.BrokerURL); err != nil {
			logWith(p.log, loglvl.WarnLevel, "broker unavailable: %v", err)
		}
	}

	if cfg.Hub != "" {
		p.joinHub(cfg.Hub)
	}

	return p, nil
}

// Name returns the process's ensemble-unique name.
func (p *Process) Name() o2nm.Name {
	return p.name
}

// Port returns the bound TCP (and UDP) port.
func (p *Process) Port() uint16 {
	return p.listener.Port()
}

// LocalNow returns seconds since the process started.
func (p *Process) LocalNow() float64 {
	return time.Since(p.epoch).Seconds()
}

// GlobalNow maps local time through the clock state; negative before sync.
func (p *Process) GlobalNow() float64 {
	return p.globalNow()
}

func (p *Process) globalNow() float64 {
	ck := p.clock.Load()
	if ck == nil || !ck.IsSynced() {
		return -1
	}
	return ck.GlobalNow(p.LocalNow())
}

// IsSynced reports whether the process has acquired clock sync (the
// reference is synced by definition).
func (p *Process) IsSynced() bool {
	ck := p.clock.Load()
	return ck != nil && ck.IsSynced()
}

// Poll runs one cooperative tick: local protocol timers first, then the
// global-time wheel. Returns immediately if another Poll is still running.
func (p *Process) Poll() {
	if !p.guard.TryAcquire(1) {
		return
	}
	defer p.guard.Release(1)

	localNow := p.LocalNow()
	for _, item := range p.schedLocal.Poll(localNow) {
		if msg, ok := item.(*o2msg.Message); ok {
			p.dispatchControl(msg)
		}
	}

	p.bridges.Poll(localNow)

	if now := p.globalNow(); now >= 0 {
		p.rt.Poll(now)
	}
}

// Run polls at the given rate until ctx is done. rateHz <= 0 defaults to
// 1000.
func (p *Process) Run(ctx context.Context, rateHz float64) {
	if rateHz <= 0 {
		rateHz = 1000
	}
	tick := time.NewTicker(time.Duration(float64(time.Second) / rateHz))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			p.Poll()
		}
	}
}

// Close tears the process down: transports, discovery, peers.
func (p *Process) Close() {
	if p.lan != nil {
		p.lan.Close()
	}
	if p.gossip != nil {
		p.gossip.Close()
	}
	p.stopBroker()
	p.closeTransports()

	p.peers.Walk(func(key o2nm.Name, val interface{}) bool {
		if pe, ok := val.(*peerEntry); ok {
			_ = pe.prx.Close()
		}
		return true
	})
	p.peers.Clean()
}

func (p *Process) closeTransports() {
	if p.listener != nil {
		_ = p.listener.Close()
	}
	if p.udp != nil {
		_ = p.udp.Close()
	}
}

// SetStatusFunc installs the user's status-change callback.
func (p *Process) SetStatusFunc(fct StatusFunc) {
	p.si = fct
}

// ---- user-facing service operations ----

// ServiceNew announces a local service backed by the process's handler
// tree. Methods are added with MethodNew.
func (p *Process) ServiceNew(name string) liberr.Error {
	if name == "" || strings.ContainsRune(name, '/') {
		return ErrorBadServiceName.Error(nil)
	}

	err := p.dir.ServiceProviderNew(name, libdir.Provider{
		Process: p.name,
		Kind:    libdir.ProviderLocalHandlerTree,
		Handle:  p.tree,
	})
	if err != nil {
		return err
	}

	p.broadcastMutation(libdir.Mutation{
		Kind:    libdir.MutationAddService,
		Service: name,
		Process: p.name,
	})
	return nil
}

// ServiceFree withdraws a local service and tells every peer.
func (p *Process) ServiceFree(name string) liberr.Error {
	if err := p.dir.ServiceRemove(name, p.name); err != nil {
		return err
	}
	p.broadcastMutation(libdir.Mutation{
		Kind:    libdir.MutationRemoveService,
		Service: name,
		Process: p.name,
	})
	return nil
}

// MethodNew installs a handler at path, creating the service when needed.
func (p *Process) MethodNew(path string, h libtree.Handler) liberr.Error {
	if err := p.tree.Register(path, h); err != nil {
		return err
	}

	svc := (&o2msg.Message{Address: path}).ServiceName()
	if _, _, ok := p.dir.ServiceFind(svc); !ok {
		return p.ServiceNew(svc)
	}
	return nil
}

// MethodNewTyped installs a handler that declares a type-tag string. The
// argument list of every delivered message is coerced to typespec before
// the handler runs; a message whose arguments cannot be coerced is
// dropped with a warning.
func (p *Process) MethodNewTyped(path, typespec string, h libtree.Handler) liberr.Error {
	return p.MethodNew(path, func(m *o2msg.Message) liberr.Error {
		args, err := o2msg.Coerce(m.Args, typespec)
		if err != nil {
			p.warnDrop("arguments do not coerce to "+typespec, m)
			return err
		}

		coerced := *m
		coerced.Args = args
		return h(&coerced)
	})
}

// TapNew asserts a tap: copies of messages delivered to tappee are
// forwarded to the local tapper service.
func (p *Process) TapNew(tappee, tapper string, mode libdir.SendMode) liberr.Error {
	if err := p.dir.TapNew(tappee, tapper, p.name, mode); err != nil {
		return err
	}
	p.broadcastMutation(libdir.Mutation{
		Kind:          libdir.MutationAddTap,
		Service:       tappee,
		Process:       p.name,
		TapperService: tapper,
		Mode:          mode,
	})
	return nil
}

// TapRemove withdraws a tap this process asserted.
func (p *Process) TapRemove(tappee, tapper string) liberr.Error {
	if err := p.dir.TapRemove(tappee, tapper, p.name); err != nil {
		return err
	}
	p.broadcastMutation(libdir.Mutation{
		Kind:          libdir.MutationRemoveTap,
		Service:       tappee,
		Process:       p.name,
		TapperService: tapper,
	})
	return nil
}

// ServiceSetProperties replaces the attribute string of a local service
// and propagates the change.
func (p *Process) ServiceSetProperties(name, properties string) liberr.Error {
	if err := p.dir.ProviderReplace(name, p.name, properties); err != nil {
		return err
	}
	p.broadcastMutation(libdir.Mutation{
		Kind:       libdir.MutationAddService,
		Service:    name,
		Process:    p.name,
		Properties: properties,
	})
	return nil
}

// CanSend reports whether a single following send to the service would be
// accepted without blocking. Local services always accept.
func (p *Process) CanSend(service string) bool {
	_, active, ok := p.dir.ServiceFind(service)
	if !ok {
		return false
	}
	if active.Kind.IsLocal() {
		return true
	}
	if rp, k := active.Handle.(*px.RemoteProcess); k {
		return rp.CanSend()
	}
	return active.Handle != nil
}

// Send routes one message built by the caller.
func (p *Process) Send(msg *o2msg.Message) liberr.Error {
	return p.rt.Send(msg)
}

// SendArgs builds and routes a message in one call. timestamp 0 means
// "now"; tcp selects the reliable flag.
func (p *Process) SendArgs(address string, timestamp float64, tcp bool, args ...o2msg.Arg) liberr.Error {
	msg := &o2msg.Message{
		Timestamp: timestamp,
		Address:   address,
		Args:      args,
	}
	if tcp {
		msg.Flags |= o2msg.FlagTCP
	}
	return p.rt.Send(msg)
}

// Status reports the user-visible state of a service name.
func (p *Process) Status(service string) ServiceStatus {
	_, active, ok := p.dir.ServiceFind(service)
	if !ok {
		return StatusUnknown
	}

	switch active.Kind {
	case libdir.ProviderLocalHandlerTree, libdir.ProviderLocalSingleHandler:
		if p.IsSynced() {
			return StatusLocal
		}
		return StatusLocalNoTime
	case libdir.ProviderRemoteProcess:
		if prx, ok := active.Handle.(px.Proxy); ok && prx.LocalIsSynchronized() {
			return StatusRemote
		}
		return StatusRemoteNoTime
	case libdir.ProviderBridge:
		if prx, ok := active.Handle.(px.Proxy); ok && prx.LocalIsSynchronized() {
			return StatusBridge
		}
		return StatusBridgeNoTime
	case libdir.ProviderOSCDelegate:
		if prx, ok := active.Handle.(px.Proxy); ok && prx.LocalIsSynchronized() {
			return StatusOsc
		}
		return StatusOscNoTime
	}

	return StatusUnknown
}

// ---- clock ----

// ClockSet elects this process as the ensemble's reference clock. It
// provides the clock service from now on and answers time requests.
func (p *Process) ClockSet() liberr.Error {
	if ck := p.clock.Load(); ck != nil && ck.IsReference() {
		return ErrorClockAlreadySet.Error(nil)
	}

	now := p.LocalNow()
	p.clock.Store(libck.NewReference(now))
	p.schedGlobal.Activate(now)

	err := p.dir.ServiceProviderNew(ClockServiceName, libdir.Provider{
		Process: p.name,
		Kind:    libdir.ProviderLocalHandlerTree,
		Handle:  p.tree,
	})
	if err != nil {
		return err
	}

	p.broadcastMutation(libdir.Mutation{
		Kind:    libdir.MutationAddService,
		Service: ClockServiceName,
		Process: p.name,
	})
	p.announceSynced()
	return nil
}

func (p *Process) announceSynced() {
	msg := NewClockSyncedMessage(p.name)
	p.eachPeer(func(pe *peerEntry) {
		_ = pe.prx.Send(msg, true)
	})

	if p.broker != nil {
		_ = libbr.AnnounceDiscovery(p.broker.nc, p.cfg.Ensemble, p.name, true)
	}
}

// startPinging begins the time-request schedule against a discovered
// reference clock.
func (p *Process) startPinging() {
	if p.pinging {
		return
	}
	p.pinging = true
	p.pingCount = 0
	p.pingStart = p.LocalNow()
	p.scheduleLocal(AddressClockPing, 0)
}

func (p *Process) onPingTimer() {
	ck := p.clock.Load()
	if ck == nil || ck.IsReference() {
		return
	}

	if _, _, ok := p.dir.ServiceFind(ClockServiceName); !ok {
		// reference disappeared; stop until it is seen again
		p.pinging = false
		return
	}

	localNow := p.LocalNow()
	seq := ck.NextSeq(localNow)
	_ = p.rt.Send(NewClockRequestMessage(seq, replyAddress(p.name)))

	p.pingCount++
	delay := libck.PingSchedule(p.pingCount, localNow-p.pingStart)
	p.scheduleLocal(AddressClockPing, delay)
}

func (p *Process) onClockReply(msg *o2msg.Message) liberr.Error {
	seq, refTime, err := ParseClockReply(msg)
	if err != nil {
		return err
	}

	ck := p.clock.Load()
	if ck == nil {
		return ErrorNotInitialized.Error(nil)
	}

	res, err := ck.RecordReply(seq, p.LocalNow(), refTime)
	if err != nil {
		return err
	}

	switch {
	case res.Acquired:
		p.schedGlobal.Activate(p.globalNow())
		p.announceSynced()
		logWith(p.log, loglvl.InfoLevel, "clock sync acquired")
	case res.Restore != nil:
		p.scheduleLocalMsg(NewClockRestoreMessage(res.Restore.Version), res.Restore.Delay)
	case res.Jumped:
		logWith(p.log, loglvl.InfoLevel, "clock jumped forward to catch up")
	case res.Paused:
		logWith(p.log, loglvl.WarnLevel, "clock paused awaiting a fresh estimate")
	}

	clockOffsetGauge.Set(p.globalNow() - p.LocalNow())
	return nil
}

func (p *Process) onClockRestore(msg *o2msg.Message) liberr.Error {
	if len(msg.Args) != 1 || msg.Args[0].Type != 'i' {
		return ErrorBadControl.Error(nil)
	}
	if ck := p.clock.Load(); ck != nil {
		ck.FireRestore(libck.RestoreMessage{Version: int(msg.Args[0].I)}, p.LocalNow())
	}
	return nil
}

func (p *Process) onCsGet(msg *o2msg.Message) liberr.Error {
	ck := p.clock.Load()
	if ck == nil || !ck.IsReference() {
		return ErrorBadControl.Error(nil)
	}

	seq, replyTo, err := ParseClockRequest(msg)
	if err != nil {
		return err
	}

	return p.rt.Send(NewClockReplyMessage(replyTo, seq, ck.GlobalNow(p.LocalNow())))
}

func (p *Process) onPeerSynced(msg *o2msg.Message) liberr.Error {
	if len(msg.Args) != 1 || msg.Args[0].Type != 's' {
		return ErrorBadControl.Error(nil)
	}

	name, err := o2nm.Parse(msg.Args[0].S)
	if err != nil {
		return ErrorBadControl.ErrorParent(err)
	}

	if pe := p.peer(name); pe != nil {
		pe.prx.SetSynchronized(true)
		p.notify(libdir.StatusEvent{
			Service: name.String(),
			Status:  libdir.StatusRemote,
			Process: name,
		})
		return nil
	}

	return ErrorPeerUnknown.Error(nil)
}

// ---- scheduling helpers ----

func (p *Process) scheduleLocal(address string, delay float64) {
	p.scheduleLocalMsg(&o2msg.Message{Address: address}, delay)
}

func (p *Process) scheduleLocalMsg(msg *o2msg.Message, delay float64) {
	msg.Timestamp = p.LocalNow() + delay
	if err := p.schedLocal.Schedule(msg.Timestamp, msg); err != nil {
		logWith(p.log, loglvl.ErrorLevel, "cannot schedule %s: %v", msg.Address, err)
	}
}

// dispatchControl routes a due self-timer or control message through the
// handler tree.
func (p *Process) dispatchControl(msg *o2msg.Message) {
	for _, h := range p.tree.Dispatch(msg.Address) {
		if err := h(msg); err != nil {
			logWith(p.log, loglvl.DebugLevel, "control %s: %v", msg.Address, err)
		}
	}
}

// ---- wiring ----

// procNotifier forwards directory status events into the process.
type procNotifier struct {
	p *Process
}

func (n procNotifier) Notify(evt libdir.StatusEvent) {
	n.p.notify(evt)
}

func (p *Process) notify(evt libdir.StatusEvent) {
	// seeing the clock service for the first time starts the ping protocol
	if evt.Service == ClockServiceName && evt.Status == libdir.StatusRemote {
		if ck := p.clock.Load(); ck != nil && !ck.IsReference() {
			p.startPinging()
		}
	}

	// posted through the local wheel so a user handler runs on the poll
	// thread, outside the directory's own locks
	p.scheduleLocalMsg(&o2msg.Message{
		Address: AddressSi,
		Args: []o2msg.Arg{
			o2msg.String(evt.Service),
			o2msg.Int32(int32(evt.Status)),
			o2msg.String(evt.Process.String()),
			o2msg.String(evt.Properties),
		},
	}, 0)

	if p.si != nil {
		p.si(evt)
	}
}

// warnDrop records every dropped message in the diagnostics pool and
// logs it. The pool is bounded: once it holds maxDropDiagnostics entries,
// it is emptied before the next one is added.
func (p *Process) warnDrop(reason string, msg *o2msg.Message) {
	if p.drops.Len() >= maxDropDiagnostics {
		p.drops.Clear()
	}
	p.drops.Add(ErrorMessageDropped.Errorf(msg.Address, reason))

	logWith(p.log, loglvl.WarnLevel, "dropped %s: %s", msg.Address, reason)
}

// DropErrors returns the diagnostics recorded for recently dropped
// messages; ordering is not guaranteed.
func (p *Process) DropErrors() []error {
	return p.drops.Slice()
}

// ClearDropErrors empties the drop-diagnostics pool.
func (p *Process) ClearDropErrors() {
	p.drops.Clear()
}

func logWith(fct liblog.FuncLog, lvl loglvl.Level, pattern string, args ...interface{}) {
	if fct == nil {
		return
	}
	if lg := fct(); lg != nil {
		lg.Entry(lvl, pattern, args...).Log()
	}
}
