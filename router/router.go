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

package router

import (
	"strings"

	libdir "github.com/sabouaram/o2/directory"
	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	libtree "github.com/sabouaram/o2/pathtree"
	px "github.com/sabouaram/o2/proxy"
	libsch "github.com/sabouaram/o2/scheduler"
)

// NowFunc returns the current global time in seconds. It must return a
// negative value while the local process has not acquired clock sync.
type NowFunc func() float64

// WarnFunc receives a diagnostic string for every dropped message. May be
// nil.
type WarnFunc func(reason string, msg *o2msg.Message)

// Router fingerprints addresses and dispatches messages to local
// handlers, proxies, the global-time wheel, and taps.
type Router struct {
	dir    *libdir.Directory
	global *libsch.Wheel
	now    NowFunc
	warn   WarnFunc

	// depth counts nested deliveries so a handler sending messages of its
	// own cannot recursively drain the wheel mid-dispatch.
	depth int
}

// New builds a router over the given directory, global-time wheel and
// clock source.
func New(dir *libdir.Directory, global *libsch.Wheel, now NowFunc, warn WarnFunc) *Router {
	return &Router{
		dir:    dir,
		global: global,
		now:    now,
		warn:   warn,
	}
}

// Send implements message_send: resolve the service, schedule if the
// message is timestamped and its provider cannot schedule itself, deliver
// to the active provider, then fan copies out to the taps.
func (r *Router) Send(msg *o2msg.Message) liberr.Error {
	svc := msg.ServiceName()
	if svc == "" {
		r.drop("address has no service segment", msg)
		return ErrorBadAddress.Error(nil)
	}

	entry, active, ok := r.dir.ServiceFind(svc)
	if !ok {
		r.drop("no service named "+svc, msg)
		return ErrorNoService.Error(nil)
	}

	if msg.Timestamp > 0 && r.mustSchedule(active) {
		now := r.now()
		if now < 0 {
			r.drop("timestamped message before clock sync", msg)
			return ErrorNoClock.Error(nil)
		}
		if !libsch.Immediate(msg.Timestamp, now) {
			scheduledCounter.Inc()
			return r.global.Schedule(msg.Timestamp, msg)
		}
	}

	err := r.deliver(active, msg)
	if err == nil {
		routedCounter.Inc()
	}

	for _, tap := range entry.Taps {
		r.sendTap(tap, msg)
	}

	return err
}

// Poll drains the global-time wheel and re-sends every message that has
// come due. It is a no-op while a delivery is already on the stack, so a
// handler that sends timestamped messages queues them for the next tick
// instead of re-entering dispatch.
func (r *Router) Poll(now float64) {
	if r.depth > 0 {
		return
	}

	for _, item := range r.global.Poll(now) {
		if msg, ok := item.(*o2msg.Message); ok {
			_ = r.Send(msg)
		}
	}
}

// mustSchedule reports whether the provider demands the router run the
// global-time wheel before handing the message over. Local handlers
// always do; proxies answer for themselves.
func (r *Router) mustSchedule(p libdir.Provider) bool {
	if p.Kind.IsLocal() {
		return true
	}
	if prx, ok := p.Handle.(px.Proxy); ok {
		return prx.ScheduleBeforeSend()
	}
	return true
}

func (r *Router) deliver(p libdir.Provider, msg *o2msg.Message) liberr.Error {
	r.depth++
	defer func() { r.depth-- }()

	switch p.Kind {
	case libdir.ProviderLocalHandlerTree:
		tree, ok := p.Handle.(*libtree.Tree)
		if !ok {
			return ErrorBadProvider.Error(nil)
		}
		handlers := tree.Dispatch(msg.Address)
		if len(handlers) == 0 {
			r.drop("no handler matches "+msg.Address, msg)
			return ErrorNoHandler.Error(nil)
		}
		var err liberr.Error
		for _, h := range handlers {
			if e := h(msg); e != nil {
				err = e
			}
		}
		return err

	case libdir.ProviderLocalSingleHandler:
		h, ok := p.Handle.(libtree.Handler)
		if !ok {
			return ErrorBadProvider.Error(nil)
		}
		return h(msg)

	case libdir.ProviderRemoteProcess, libdir.ProviderBridge, libdir.ProviderOSCDelegate:
		prx, ok := p.Handle.(px.Proxy)
		if !ok {
			return ErrorBadProvider.Error(nil)
		}
		return prx.Send(msg, false)
	}

	return ErrorBadProvider.Error(nil)
}

// sendTap forwards a copy of msg to one tapper. The copy is re-addressed
// to the tapper's service, and its transport flag follows the tap's send
// mode. The tapper is a specific (service, process) pair: the copy goes
// to that process's provider of the tapper service even when it is not
// the active one.
func (r *Router) sendTap(tap libdir.Tap, msg *o2msg.Message) {
	entry, _, ok := r.dir.ServiceFind(tap.TapperService)
	if !ok {
		r.drop("tap target service "+tap.TapperService+" unknown", msg)
		return
	}

	var (
		prov  libdir.Provider
		found bool
	)
	for _, p := range entry.Providers {
		if p.Process == tap.TapperProcess {
			prov = p
			found = true
			break
		}
	}
	if !found {
		r.drop("tap target process left "+tap.TapperService, msg)
		return
	}

	copied := *msg
	copied.Address = replaceService(msg.Address, tap.TapperService)

	switch tap.Mode {
	case libdir.SendReliable:
		copied.Flags |= o2msg.FlagTCP
	case libdir.SendBestEffort:
		copied.Flags &^= o2msg.FlagTCP
	}

	_ = r.deliver(prov, &copied)
}

// replaceService rewrites the service segment of an address, keeping the
// leading '/' or '!' and the rest of the path.
func replaceService(addr, svc string) string {
	if addr == "" {
		return "/" + svc
	}

	lead := byte('/')
	rest := addr
	if addr[0] == '/' || addr[0] == '!' {
		lead = addr[0]
		rest = addr[1:]
	}

	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return string(lead) + svc + rest[i:]
	}
	return string(lead) + svc
}

func (r *Router) drop(reason string, msg *o2msg.Message) {
	droppedCounter.Inc()
	if r.warn != nil {
		r.warn(reason, msg)
	}
}
