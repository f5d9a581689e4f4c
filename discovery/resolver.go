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
	liberr "github.com/sabouaram/o2/errors"
)

// ResolveWatchdog is how long a single resolve attempt may run before the
// queue cancels it and retries the list head.
const ResolveWatchdog = 1.0

// Resolver is the seam a concrete mDNS/zeroconf library implements: start
// resolving the named browse result, and cancel an in-flight attempt.
// Results come back through ResolveQueue.Done.
type Resolver interface {
	Resolve(instance string)
	Cancel(instance string)
}

// ResolveQueue serializes resolve attempts: at most one is outstanding,
// and an attempt that produces no callback within the watchdog interval
// is cancelled and retried. Instances are identified by their browse
// name; duplicates are coalesced.
type ResolveQueue struct {
	resolver Resolver
	pending  []string
	inFlight string
	deadline float64
}

// NewResolveQueue builds an idle queue over the given resolver.
func NewResolveQueue(r Resolver) *ResolveQueue {
	return &ResolveQueue{resolver: r}
}

// Push appends a browse result to the resolve list unless it is already
// queued or in flight.
func (q *ResolveQueue) Push(instance string) {
	if q.inFlight == instance {
		return
	}
	for _, p := range q.pending {
		if p == instance {
			return
		}
	}
	q.pending = append(q.pending, instance)
}

// Done reports a resolve completion (successful or failed) for the named
// instance. On success the caller has already fed the resolved peer into
// discovery; the queue just moves on.
func (q *ResolveQueue) Done(instance string) {
	if q.inFlight == instance {
		q.inFlight = ""
	}
}

// Poll drives the queue: starts the next resolve when idle, and cancels
// plus re-queues the in-flight attempt when the watchdog expires. now is
// local time in seconds.
func (q *ResolveQueue) Poll(now float64) liberr.Error {
	if q.inFlight != "" {
		if now < q.deadline {
			return nil
		}
		q.resolver.Cancel(q.inFlight)
		q.pending = append(q.pending, q.inFlight)
		q.inFlight = ""
		return ErrorResolveTimeout.Error(nil)
	}

	if len(q.pending) == 0 {
		return nil
	}

	q.inFlight = q.pending[0]
	q.pending = q.pending[1:]
	q.deadline = now + ResolveWatchdog
	q.resolver.Resolve(q.inFlight)
	return nil
}

// Len returns the number of queued (not in-flight) instances.
func (q *ResolveQueue) Len() int {
	return len(q.pending)
}
