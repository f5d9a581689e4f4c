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

package scheduler

import (
	"math"
	"sort"
	"sync"

	liberr "github.com/sabouaram/o2/errors"
)

// BinCount is the number of 10ms bins in the wheel: a power of two, so one
// revolution spans 1.28 seconds
const BinCount = 128

// BinWidth is the bin resolution in seconds.
const BinWidth = 0.01

// Item is one message queued for delivery at Timestamp. Payload is an
// opaque pointer the caller (router) attaches, typically *o2msg.Message.
type Item struct {
	Timestamp float64
	Payload   interface{}
}

// Wheel is a single 10ms timing wheel, shared by the local-time and
// global-time scheduler instances (see Local and Global below).
type Wheel struct {
	mu          sync.Mutex
	bins        [BinCount][]Item
	lastAbsBin  int64
	lastTime    float64
	initialized bool
	active      bool
}

// absBin is the absolute (non-wrapping) bin number for ts: floor(ts/BinWidth).
// Two absolute bin numbers BinCount apart map to the same physical slot.
func absBin(ts float64) int64 {
	return int64(math.Floor(ts / BinWidth))
}

func binIndex(ts float64) int {
	b := absBin(ts) % int64(BinCount)
	if b < 0 {
		b += int64(BinCount)
	}
	return int(b)
}

func physicalSlot(a int64) int {
	b := a % int64(BinCount)
	if b < 0 {
		b += int64(BinCount)
	}
	return int(b)
}

// newWheel builds a Wheel. active controls whether Poll runs immediately
// (local-time scheduler) or must wait for Activate (global-time scheduler).
func newWheel(active bool) *Wheel {
	return &Wheel{active: active}
}

// Activate starts the wheel at refTime. Used by the global-time scheduler
// on first clock acquisition: "start the global-time
// scheduler from that reference time".
func (w *Wheel) Activate(refTime float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.active = true
	w.lastTime = refTime
	w.lastAbsBin = absBin(refTime)
	w.initialized = true
}

// IsActive reports whether Poll will currently do anything.
func (w *Wheel) IsActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Schedule inserts an item, binned by ⌊timestamp·100⌋ mod BinCount, kept in
// time-ascending order within its bin. A message with a
// timestamp at or before now should be dispatched immediately rather than
// scheduled — callers should check Immediate first.
func (w *Wheel) Schedule(timestamp float64, payload interface{}) liberr.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.active {
		return ErrorNotActive.Error(nil)
	}

	b := binIndex(timestamp)
	bin := w.bins[b]
	i := sort.Search(len(bin), func(i int) bool { return bin[i].Timestamp > timestamp })
	bin = append(bin, Item{})
	copy(bin[i+1:], bin[i:])
	bin[i] = Item{Timestamp: timestamp, Payload: payload}
	w.bins[b] = bin

	return nil
}

// Immediate reports whether a message timestamped ts should bypass the
// wheel and be dispatched at once "a message given a past
// timestamp is dispatched immediately".
func Immediate(ts, now float64) bool {
	return ts <= now
}

// Poll advances the wheel to now and returns every item whose timestamp has
// come due, in time order. It is a no-op returning nil while the wheel is
// inactive (the dormant global-time scheduler before clock sync). The
// wrap-around guard lives here: if more than one
// second has elapsed since the last poll, the wheel advances in 1-second
// substeps so a single call can never scan across more than one full
// revolution of the table.
func (w *Wheel) Poll(now float64) []interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.active {
		return nil
	}

	if !w.initialized {
		w.lastTime = now
		w.lastAbsBin = absBin(now)
		w.initialized = true
		return nil
	}

	var out []interface{}

	for now-w.lastTime > 1.0 {
		sub := w.lastTime + 1.0
		out = append(out, w.drainRange(sub)...)
	}

	out = append(out, w.drainRange(now)...)
	return out
}

// drainRange walks every absolute bin from lastAbsBin through the absolute
// bin for now (inclusive), popping every item whose timestamp has come due,
// and advances lastAbsBin/lastTime to now. Walking by absolute bin number
// rather than by physical slot index means a full revolution (exactly
// BinCount bins elapsed) still visits every slot once, instead of degenerating
// into a single no-op step when the start and end slots coincide. Caller
// must hold w.mu, and the caller (Poll) is responsible for ensuring no more
// than BinCount bins elapse between consecutive calls.
func (w *Wheel) drainRange(now float64) []interface{} {
	cur := absBin(now)

	var out []interface{}
	for a := w.lastAbsBin; a <= cur; a++ {
		out = append(out, w.drainBin(physicalSlot(a), now)...)
	}

	w.lastAbsBin = cur
	w.lastTime = now
	return out
}

func (w *Wheel) drainBin(b int, now float64) []interface{} {
	bin := w.bins[b]
	if len(bin) == 0 {
		return nil
	}

	var fired []Item
	kept := bin[:0]
	for _, it := range bin {
		if it.Timestamp <= now {
			fired = append(fired, it)
		} else {
			kept = append(kept, it)
		}
	}
	w.bins[b] = kept

	sort.SliceStable(fired, func(i, j int) bool { return fired[i].Timestamp < fired[j].Timestamp })

	out := make([]interface{}, len(fired))
	for i, it := range fired {
		out[i] = it.Payload
	}
	return out
}
