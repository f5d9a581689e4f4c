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

package directory

import (
	"sort"
	"sync"

	liberr "github.com/sabouaram/o2/errors"
	o2nm "github.com/sabouaram/o2/o2name"
)

// Directory is the per-process replica of the ensemble's service table. All
// mutations are local; the caller is responsible for broadcasting them via
// Broadcaster and for applying inbound mutations via ApplyRemote.
type Directory struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	notifier Notifier
}

// New builds an empty Directory. notifier may be nil if status events are
// not needed (e.g. in unit tests).
func New(notifier Notifier) *Directory {
	return &Directory{
		entries:  make(map[string]*Entry),
		notifier: notifier,
	}
}

func (d *Directory) notify(evt StatusEvent) {
	if d.notifier != nil {
		d.notifier.Notify(evt)
	}
}

// sortProviders stable-sorts the whole provider list: a lone local
// provider comes first, then remote providers by descending process name,
// so position 0 holds the active provider.
func sortProviders(e *Entry) {
	sort.SliceStable(e.Providers, func(i, j int) bool {
		a, b := e.Providers[i], e.Providers[j]
		if a.Kind.IsLocal() != b.Kind.IsLocal() {
			return a.Kind.IsLocal()
		}
		return a.Process.Greater(b.Process)
	})
}

// ServiceProviderNew installs p as a provider of name
// service_provider_new operation. A second local provider for the same
// service on this process is rejected.
func (d *Directory) ServiceProviderNew(name string, p Provider) liberr.Error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[name]
	if !ok {
		e = &Entry{Name: name}
		d.entries[name] = e
	}

	if p.Kind.IsLocal() {
		for _, existing := range e.Providers {
			if existing.Kind.IsLocal() {
				return ErrorDuplicateProvider.Error(nil)
			}
		}
	}

	// one provider row per process: a re-announced remote provider
	// refreshes in place instead of stacking duplicates
	replaced := false
	if !p.Kind.IsLocal() {
		for i := range e.Providers {
			if e.Providers[i].Process == p.Process && !e.Providers[i].Kind.IsLocal() {
				e.Providers[i] = p
				replaced = true
				break
			}
		}
	}
	if !replaced {
		e.Providers = append(e.Providers, p)
	}
	sortProviders(e)

	status := StatusRemote
	if p.Kind.IsLocal() {
		status = StatusLocal
	}
	d.notify(StatusEvent{Service: name, Status: status, Process: p.Process, Properties: p.Properties})

	return nil
}

// ProviderReplace updates the properties of process's provider entry for
// name in place, re-sorting position 0.
func (d *Directory) ProviderReplace(name string, process o2nm.Name, properties string) liberr.Error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[name]
	if !ok {
		return ErrorUnknownService.Error(nil)
	}

	found := false
	for i := range e.Providers {
		if e.Providers[i].Process == process {
			e.Providers[i].Properties = properties
			found = true
		}
	}
	if !found {
		return ErrorUnknownService.Error(nil)
	}

	sortProviders(e)
	return nil
}

// ServiceRemove removes process's provider of name. When the entry's
// provider list and tap list both become empty, the entry is deleted
// .
func (d *Directory) ServiceRemove(name string, process o2nm.Name) liberr.Error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[name]
	if !ok {
		return ErrorUnknownService.Error(nil)
	}

	kept := e.Providers[:0]
	for _, p := range e.Providers {
		if p.Process != process {
			kept = append(kept, p)
		}
	}
	e.Providers = kept
	sortProviders(e)

	d.notify(StatusEvent{Service: name, Status: StatusGone, Process: process})

	d.deleteIfEmpty(name, e)
	return nil
}

// TapNew installs a tap on name, owned by process's service tapperService
// .
func (d *Directory) TapNew(name, tapperService string, process o2nm.Name, mode SendMode) liberr.Error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[name]
	if !ok {
		e = &Entry{Name: name}
		d.entries[name] = e
	}

	e.Taps = append(e.Taps, Tap{TapperService: tapperService, TapperProcess: process, Mode: mode})
	return nil
}

// TapRemove removes the tap matching tapperService/process on name.
func (d *Directory) TapRemove(name, tapperService string, process o2nm.Name) liberr.Error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[name]
	if !ok {
		return ErrorUnknownService.Error(nil)
	}

	kept := e.Taps[:0]
	for _, t := range e.Taps {
		if !(t.TapperService == tapperService && t.TapperProcess == process) {
			kept = append(kept, t)
		}
	}
	e.Taps = kept

	d.deleteIfEmpty(name, e)
	return nil
}

// RemoveServicesByProcess deletes every provider offered by process
// across every service, the TCP hang-up cleanup rule.
func (d *Directory) RemoveServicesByProcess(process o2nm.Name) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, e := range d.entries {
		kept := e.Providers[:0]
		removed := false
		for _, p := range e.Providers {
			if p.Process == process {
				removed = true
				continue
			}
			kept = append(kept, p)
		}
		e.Providers = kept
		if removed {
			sortProviders(e)
			d.notify(StatusEvent{Service: name, Status: StatusGone, Process: process})
		}
		d.deleteIfEmptyLocked(name, e)
	}
}

// RemoveTapsByProcess deletes every tap asserted by process, across every
// service.
func (d *Directory) RemoveTapsByProcess(process o2nm.Name) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, e := range d.entries {
		kept := e.Taps[:0]
		for _, t := range e.Taps {
			if t.TapperProcess != process {
				kept = append(kept, t)
			}
		}
		e.Taps = kept
		d.deleteIfEmptyLocked(name, e)
	}
}

// deleteIfEmpty acquires nothing extra; caller already holds d.mu.
func (d *Directory) deleteIfEmpty(name string, e *Entry) {
	d.deleteIfEmptyLocked(name, e)
}

func (d *Directory) deleteIfEmptyLocked(name string, e *Entry) {
	if len(e.Providers) == 0 && len(e.Taps) == 0 {
		delete(d.entries, name)
	}
}

// ServiceFind returns the entry for name and its active provider.
func (d *Directory) ServiceFind(name string) (Entry, Provider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[name]
	if !ok {
		return Entry{}, Provider{}, false
	}

	cp := *e
	cp.Providers = append([]Provider(nil), e.Providers...)
	cp.Taps = append([]Tap(nil), e.Taps...)

	active, hasActive := cp.Active()
	return cp, active, hasActive
}

// Snapshot returns every service entry, used to build the full-state
// /_o2/sv message sent to a newly connected peer.
func (d *Directory) Snapshot() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		cp := *e
		cp.Providers = append([]Provider(nil), e.Providers...)
		cp.Taps = append([]Tap(nil), e.Taps...)
		out = append(out, cp)
	}
	return out
}

// ApplyRemote applies an inbound service-list mutation attributed to its
// sending peer. handle, when non-nil, is attached to an added provider so
// the router can reach the peer's proxy; removals and taps ignore it.
func (d *Directory) ApplyRemote(m Mutation, handle ...interface{}) liberr.Error {
	var h interface{}
	if len(handle) > 0 {
		h = handle[0]
	}

	switch m.Kind {
	case MutationAddService:
		return d.ServiceProviderNew(m.Service, Provider{
			Process:    m.Process,
			Kind:       ProviderRemoteProcess,
			Handle:     h,
			Properties: m.Properties,
		})
	case MutationRemoveService:
		return d.ServiceRemove(m.Service, m.Process)
	case MutationAddTap:
		return d.TapNew(m.Service, m.TapperService, m.Process, m.Mode)
	case MutationRemoveTap:
		return d.TapRemove(m.Service, m.TapperService, m.Process)
	}
	return ErrorUnknownService.Error(nil)
}
