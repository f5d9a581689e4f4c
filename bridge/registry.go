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

	liberr "github.com/sabouaram/o2/errors"
	px "github.com/sabouaram/o2/proxy"
)

// Instance is one live endpoint of a bridge protocol; it also satisfies
// proxy.Proxy, since a bridge instance acts as the service provider for
// whatever it bridges to.
type Instance interface {
	px.Proxy

	// Tag returns the owning protocol's tag.
	Tag() string

	// Poll is invoked once per tick by the owning Protocol's Poll, and
	// gives shared-memory bridges their chance to drain the lock-free
	// inbound queue without blocking the caller.
	Poll(now float64)
}

// Protocol is a named bridge transport. It owns zero or more live Instances.
type Protocol struct {
	Tag string

	mu        sync.RWMutex
	instances map[string]Instance
}

func newProtocol(tag string) *Protocol {
	return &Protocol{Tag: tag, instances: make(map[string]Instance)}
}

// Add registers a new live instance under id (typically the peer's process
// name or connection key).
func (p *Protocol) Add(id string, inst Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances[id] = inst
}

// Remove drops an instance, e.g. once its Close has run.
func (p *Protocol) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.instances, id)
}

// Get looks up a live instance by id.
func (p *Protocol) Get(id string) (Instance, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	inst, ok := p.instances[id]
	return inst, ok
}

// Poll calls Poll(now) on every live instance, the per-tick contract of
// once per tick.
func (p *Protocol) Poll(now float64) {
	p.mu.RLock()
	insts := make([]Instance, 0, len(p.instances))
	for _, inst := range p.instances {
		insts = append(insts, inst)
	}
	p.mu.RUnlock()

	for _, inst := range insts {
		inst.Poll(now)
	}
}

// Registry is the process-wide table of bridge protocols.
type Registry struct {
	mu        sync.RWMutex
	protocols map[string]*Protocol
}

// NewRegistry builds an empty bridge registry.
func NewRegistry() *Registry {
	return &Registry{protocols: make(map[string]*Protocol)}
}

// Register creates a new protocol under tag, failing if one already exists.
func (r *Registry) Register(tag string) (*Protocol, liberr.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.protocols[tag]; ok {
		return nil, ErrorDuplicateProtocol.Error(nil)
	}

	p := newProtocol(tag)
	r.protocols[tag] = p
	return p, nil
}

// Protocol looks up a previously registered protocol.
func (r *Registry) Protocol(tag string) (*Protocol, liberr.Error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.protocols[tag]
	if !ok {
		return nil, ErrorUnknownProtocol.Error(nil)
	}
	return p, nil
}

// Poll runs every registered protocol's per-tick Poll.
func (r *Registry) Poll(now float64) {
	r.mu.RLock()
	ps := make([]*Protocol, 0, len(r.protocols))
	for _, p := range r.protocols {
		ps = append(ps, p)
	}
	r.mu.RUnlock()

	for _, p := range ps {
		p.Poll(now)
	}
}
