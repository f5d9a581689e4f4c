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
	"sync/atomic"

	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
	px "github.com/sabouaram/o2/proxy"
)

// TagSharedMem is the 8-char protocol tag for the in-process bridge.
const TagSharedMem = "O2sm"

type lifoNode struct {
	msg  *o2msg.Message
	next *lifoNode
}

// lifoQueue is a lock-free, multi-producer/single-consumer LIFO stack
// built on a compare-and-swapped head pointer. ABA — the classic hazard
// for these inter-thread queues, usually defeated with a 128-bit CAS or
// a version tag packed into the pointer — cannot occur here: nodes are
// garbage-collected, never manually freed and recycled, so a stalled
// producer can never observe a reallocated node at the address its last
// CAS read.
type lifoQueue struct {
	head atomic.Pointer[lifoNode]
}

func (q *lifoQueue) push(msg *o2msg.Message) {
	n := &lifoNode{msg: msg}
	for {
		old := q.head.Load()
		n.next = old
		if q.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// drain pops every queued message in LIFO order and returns them reversed,
// so callers observe FIFO-within-a-tick ordering without a second queue.
func (q *lifoQueue) drain() []*o2msg.Message {
	var old *lifoNode
	for {
		old = q.head.Load()
		if old == nil {
			return nil
		}
		if q.head.CompareAndSwap(old, nil) {
			break
		}
	}

	var out []*o2msg.Message
	for n := old; n != nil; n = n.next {
		out = append(out, n.msg)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// SharedMem is a bridge Instance for an in-process peer: a helper
// "thread" (goroutine) that owns its own path tree and schedulers
// communicates with the main process exclusively through two lifoQueues,
// one per direction. The two queues are shared by pointer
// with the peer's own SharedMem endpoint (see NewSharedMemPair) so a push
// on one side's outbound queue is visible as the other side's inbound
// queue without copying.
type SharedMem struct {
	name o2nm.Name

	outbound *lifoQueue
	inbound  *lifoQueue

	globalOffset atomic.Value // stores float64

	status  px.Status
	deliver func(msg *o2msg.Message)
}

// NewSharedMemPair builds two connected SharedMem endpoints — one for the
// local side, one for the helper-goroutine side — sharing their pair of
// lock-free queues crosswise, so each side's outbound queue is the other
// side's inbound queue.
func NewSharedMemPair(localName, peerName o2nm.Name, localDeliver, peerDeliver func(msg *o2msg.Message)) (local, peer *SharedMem) {
	aToB := &lifoQueue{}
	bToA := &lifoQueue{}

	local = &SharedMem{name: peerName, outbound: aToB, inbound: bToA, status: px.StatusConnected, deliver: localDeliver}
	peer = &SharedMem{name: localName, outbound: bToA, inbound: aToB, status: px.StatusConnected, deliver: peerDeliver}

	local.globalOffset.Store(0.0)
	peer.globalOffset.Store(0.0)
	return local, peer
}

// PublishGlobalOffset stores the current local-to-global clock offset with
// a single atomic store, the monotone publishing order the reader relies
// on to guarantee the helper thread never observes a torn value.
func (s *SharedMem) PublishGlobalOffset(offset float64) {
	s.globalOffset.Store(offset)
}

// GlobalOffset is a single lock-free load of the most recently published
// offset.
func (s *SharedMem) GlobalOffset() float64 {
	return s.globalOffset.Load().(float64)
}

func (s *SharedMem) Tag() string { return TagSharedMem }

func (s *SharedMem) Send(msg *o2msg.Message, block bool) liberr.Error {
	if s.status == px.StatusClosed {
		return ErrorInstanceClosed.Error(nil)
	}
	s.outbound.push(msg)
	return nil
}

func (s *SharedMem) LocalIsSynchronized() bool { return true }
func (s *SharedMem) ScheduleBeforeSend() bool  { return false }

// Deliver is unused on this proxy variant: SharedMem has no socket-core
// reader to hand it inbound bytes, since Send on the peer side already
// pushes directly onto this side's inbound queue.
func (s *SharedMem) Deliver(msg *o2msg.Message) liberr.Error {
	return nil
}

func (s *SharedMem) Connected() { s.status = px.StatusConnected }

func (s *SharedMem) Status() (px.Status, o2nm.Name) { return s.status, s.name }

func (s *SharedMem) Close() liberr.Error {
	s.status = px.StatusClosed
	return nil
}

// Poll drains every message the peer has queued toward us since the last
// tick and hands each to deliver, in the order the peer queued them.
func (s *SharedMem) Poll(now float64) {
	for _, msg := range s.inbound.drain() {
		if s.deliver != nil {
			s.deliver(msg)
		}
	}
}
