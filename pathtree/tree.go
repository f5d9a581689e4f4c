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

package pathtree

import (
	"strings"
	"sync"

	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
)

// Handler processes one delivered message. It returns a liberr.Error so
// reserved-address dispatchers and the router can log and drop on failure
// without relying on panics for control flow.
type Handler func(msg *o2msg.Message) liberr.Error

// node is one level of the glob tree: a hash map of child segments, plus an
// optional handler when this node is a leaf. A node with a nil handler (an
// intermediate segment, or a path whose handler was unregistered) adds no
// handler to a tree walk; the walk does not fall back to the flat table.
type node struct {
	children map[string]*node
	handler  Handler
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Tree holds both lookup structures: a flat hash table for exact literal
// lookups, and a segment tree for glob dispatch. Both are updated together
// whenever a registered path contains no pattern chars.
type Tree struct {
	mu      sync.RWMutex
	flat    map[string]Handler
	root    *node
	matcher GlobMatcher
}

// New builds an empty Tree using DefaultGlobMatcher.
func New() *Tree {
	return NewWithMatcher(DefaultGlobMatcher{})
}

// NewWithMatcher builds an empty Tree using a caller-supplied GlobMatcher.
func NewWithMatcher(m GlobMatcher) *Tree {
	return &Tree{
		flat:    make(map[string]Handler),
		root:    newNode(),
		matcher: m,
	}
}

func splitSegments(path string) ([]string, liberr.Error) {
	if path == "" || (path[0] != '/' && path[0] != '!') {
		return nil, ErrorEmptyPath.Error(nil)
	}
	segs := strings.Split(path[1:], "/")
	for _, s := range segs {
		if s == "" {
			return nil, ErrorBadSegment.Error(nil)
		}
	}
	return segs, nil
}

// Register installs h at path. When path has no glob metacharacters, both
// the flat table and the tree are updated; otherwise only
// the tree is updated, since the flat table only ever serves exact lookups.
func (t *Tree) Register(path string, h Handler) liberr.Error {
	segs, err := splitSegments(path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !HasPatternChars(path) {
		t.flat[path[1:]] = h
	}

	n := t.root
	for _, s := range segs {
		child, ok := n.children[s]
		if !ok {
			child = newNode()
			n.children[s] = child
		}
		n = child
	}
	n.handler = h

	return nil
}

// Unregister removes any handler installed at path from both structures.
func (t *Tree) Unregister(path string) liberr.Error {
	segs, err := splitSegments(path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.flat, path[1:])

	n := t.root
	for _, s := range segs {
		child, ok := n.children[s]
		if !ok {
			return nil
		}
		n = child
	}
	n.handler = nil

	return nil
}

// LookupExact performs the flat-table lookup serving '!' addresses. path
// must start with '/' or '!'; the leading char itself is not part of the
// table key, so the same handler is reachable through either prefix.
func (t *Tree) LookupExact(path string) (Handler, bool) {
	if path == "" || (path[0] != '/' && path[0] != '!') {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.flat[path[1:]]
	return h, ok
}

// LookupPattern descends the segment tree, invoking the glob matcher at
// every level, and returns every handler reached by a fully-matching path.
// Both literal and pattern children of a node are tested, in both
// directions: a pattern address reaches handlers at covered literal
// paths, and a literal address also reaches handlers registered under
// matching patterns.
func (t *Tree) LookupPattern(address string) []Handler {
	segs, err := splitSegments(address)
	if err != nil {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Handler
	t.walk(t.root, segs, &out)
	return out
}

func (t *Tree) walk(n *node, segs []string, out *[]Handler) {
	if len(segs) == 0 {
		if n.handler != nil {
			*out = append(*out, n.handler)
		}
		return
	}

	seg := segs[0]
	rest := segs[1:]

	for key, child := range n.children {
		if key == seg || t.matcher.Match(key, seg) || t.matcher.Match(seg, key) {
			t.walk(child, rest, out)
		}
	}
}

// Dispatch resolves address to the handler(s) that must fire. A '!'
// prefix demands the flat table: exactly one literal handler, no pattern
// participation. A '/' prefix descends the tree, so a literal address can
// also fire handlers registered under matching patterns, and a pattern
// address can fire every literal handler it covers.
func (t *Tree) Dispatch(address string) []Handler {
	if address == "" {
		return nil
	}

	if address[0] == '!' {
		if h, ok := t.LookupExact(address); ok {
			return []Handler{h}
		}
		return nil
	}

	return t.LookupPattern(address)
}
