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
	"net"

	liberr "github.com/sabouaram/o2/errors"
)

// WellKnownPorts is the fixed list of 16 ports a process tries, in order,
// when binding its discovery/broadcast socket. Every implementation of
// the protocol must use this exact list so peers can find each other
// without prior agreement.
var WellKnownPorts = []int{
	64541, 60238, 57143, 55764, 56975, 62711, 57571, 53472,
	51555, 65187, 63861, 59185, 60618, 55947, 57967, 65386,
}

// BindFirstAvailable tries each well-known port in order and returns the
// first one it can bind a UDP socket to, along with its index in the
// list. Announcements are later broadcast to every port up to and
// including that index.
func BindFirstAvailable() (*net.UDPConn, int, liberr.Error) {
	for i, port := range WellKnownPorts {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
		if err == nil {
			return conn, i, nil
		}
	}
	return nil, -1, ErrorNoPortAvailable.Error(nil)
}

// Backoff produces the re-announcement schedule: 100 ms to start,
// multiplied by 1.125 each round, capped at 4 s.
type Backoff struct {
	interval float64
}

// NewBackoff starts a fresh backoff sequence at its initial 100 ms interval.
func NewBackoff() *Backoff {
	return &Backoff{interval: 0.1}
}

// Next returns the current interval and advances the sequence.
func (b *Backoff) Next() float64 {
	cur := b.interval
	b.interval *= 1.125
	if b.interval > 4.0 {
		b.interval = 4.0
	}
	return cur
}

// Reset restarts the sequence at its initial interval, used when a process
// re-announces itself after being (re)started.
func (b *Backoff) Reset() {
	b.interval = 0.1
}
