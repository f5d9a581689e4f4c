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

package clocksync

import (
	"sync"

	liberr "github.com/sabouaram/o2/errors"
)

// ringSize is the number of (rtt, offset) samples kept in the ring buffer.
const ringSize = 5

// sample is one recorded ping round-trip.
type sample struct {
	rtt    float64
	offset float64
}

// RestoreMessage is the self-addressed timer used to cancel a
// rate-slew after its prescribed delay. A restore only takes effect if
// Version still matches the ClockSync's current rate-version when it fires;
// any later rate change invalidates stale restores by incrementing the
// version.
type RestoreMessage struct {
	Version int
	Delay   float64
}

// ClockSync holds one process's view of the ensemble clock: whether it is
// the elected reference, its current local→global mapping, and the ping
// ring buffer used to refine that mapping. Synchronization of mu covers all
// fields; callers drive it from a single poller goroutine in practice but
// the lock makes concurrent use from tests and the bridge thread safe.
type ClockSync struct {
	mu sync.Mutex

	isReference bool
	synced      bool

	localBase  float64
	globalBase float64
	rate       float64

	rateVersion int

	samples [ringSize]sample
	sampleN int
	nextSeq int
	pending map[int]PendingPing
}

// NewReference builds a ClockSync for the process that called clock_set:
// it is synchronized from the start, with rate 1 and global == local.
func NewReference(now float64) *ClockSync {
	return &ClockSync{
		isReference: true,
		synced:      true,
		localBase:   now,
		globalBase:  now,
		rate:        1,
		pending:     make(map[int]PendingPing),
	}
}

// NewPending builds a ClockSync for a process that must synchronize to a
// discovered reference clock via the ping protocol.
func NewPending() *ClockSync {
	return &ClockSync{
		rate:    1,
		pending: make(map[int]PendingPing),
	}
}

// IsReference reports whether this process is the elected reference clock.
func (c *ClockSync) IsReference() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isReference
}

// IsSynced reports whether the process has acquired clock sync.
func (c *ClockSync) IsSynced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced
}

// GlobalNow maps local time to global time: global = global_base +
// (local − local_base) · rate.
func (c *ClockSync) GlobalNow(localNow float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.globalNowLocked(localNow)
}

func (c *ClockSync) globalNowLocked(localNow float64) float64 {
	return c.globalBase + (localNow-c.localBase)*c.rate
}

func (c *ClockSync) rebaseLocked(localNow float64) {
	c.globalBase = c.globalNowLocked(localNow)
	c.localBase = localNow
}

// NextSeq returns the next /_cs/get sequence id and records the outstanding
// ping so a later reply can be matched and out-of-order replies rejected.
func (c *ClockSync) NextSeq(sendTime float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSeq
	c.nextSeq++
	c.pending[id] = PendingPing{SeqID: id, SendTime: sendTime}
	return id
}

// ReplyResult summarizes what RecordReply did with one ping reply.
type ReplyResult struct {
	Acquired bool
	Restore  *RestoreMessage
	Jumped   bool
	Paused   bool
}

// RecordReply processes one /_cs/get reply. now is
// the local time the reply was received. refTime is the reference time
// carried in the reply. Returns whether this reply caused first acquisition
// and, if a rate-slew restore timer should be armed, its delay and version.
func (c *ClockSync) RecordReply(seqID int, now, refTime float64) (ReplyResult, liberr.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isReference {
		return ReplyResult{}, ErrorIsReference.Error(nil)
	}

	ping, ok := c.pending[seqID]
	if !ok {
		return ReplyResult{}, ErrorOutOfOrderReply.Error(nil)
	}
	delete(c.pending, seqID)

	rtt := now - ping.SendTime
	refAtNow := refTime + rtt/2
	offset := refAtNow - now

	c.samples[c.sampleN%ringSize] = sample{rtt: rtt, offset: offset}
	c.sampleN++

	if c.sampleN < ringSize {
		return ReplyResult{}, nil
	}

	best := c.samples[0]
	for _, s := range c.samples[1:] {
		if s.rtt < best.rtt {
			best = s
		}
	}
	newRef := now + best.offset

	if !c.synced {
		c.synced = true
		c.localBase = now
		c.globalBase = newRef
		c.rate = 1
		return ReplyResult{Acquired: true}, nil
	}

	current := c.globalNowLocked(now)
	advance := newRef - current

	switch {
	case advance > 1.0:
		c.globalBase = newRef
		c.localBase = now
		c.rate = 1
		c.rateVersion++
		return ReplyResult{Jumped: true}, nil
	case advance > 0:
		c.rebaseLocked(now)
		c.rate = 1.1
		c.rateVersion++
		return ReplyResult{Restore: &RestoreMessage{Version: c.rateVersion, Delay: 10 * advance}}, nil
	case advance == 0:
		return ReplyResult{}, nil
	case advance >= -1.0:
		c.rebaseLocked(now)
		c.rate = 0.9
		c.rateVersion++
		return ReplyResult{Restore: &RestoreMessage{Version: c.rateVersion, Delay: -10 * advance}}, nil
	default:
		c.rebaseLocked(now)
		c.rate = 0
		c.rateVersion++
		return ReplyResult{Paused: true}, nil
	}
}

// FireRestore applies a previously-armed RestoreMessage, resetting rate to 1
// unless a later rate change has already bumped the version past it: any
// still-pending restoration cancels itself by version mismatch.
func (c *ClockSync) FireRestore(msg RestoreMessage, now float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.Version != c.rateVersion {
		return
	}

	c.rebaseLocked(now)
	c.rate = 1
}
