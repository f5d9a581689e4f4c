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
	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
)

// Reserved addresses of the clock protocol and the self-addressed timers
// driving it.
const (
	// ClockServiceName is the service the reference clock provides.
	ClockServiceName = "_cs"
	// AddressCsGet asks the reference for its current time.
	AddressCsGet = "/_cs/get"
	// AddressClockSynced tells a peer this process acquired clock sync.
	AddressClockSynced = "/_o2/cs/cs"
	// AddressClockPing is the self-addressed ping timer.
	AddressClockPing = "/_o2/cs/ps"
	// AddressClockRestore is the self-addressed rate-restore timer.
	AddressClockRestore = "/_o2/cs/cu"
	// AddressDiscSend is the self-addressed discovery re-announce timer.
	AddressDiscSend = "/_o2/ds"
	// AddressSi carries local status-change notifications a user handler
	// can subscribe to with MethodNew.
	AddressSi = "/_o2/si"
	// clockReplySuffix completes "/<own-name>" into the reply address a
	// ping carries in its reply_to argument.
	clockReplySuffix = "/cs/get-reply"
)

// NewClockRequestMessage builds the (seq, reply_to) time request a
// synchronizing process sends to the reference.
func NewClockRequestMessage(seq int, replyTo string) *o2msg.Message {
	return &o2msg.Message{
		Address: AddressCsGet,
		Args: []o2msg.Arg{
			o2msg.Int32(int32(seq)),
			o2msg.String(replyTo),
		},
	}
}

// ParseClockRequest decodes an inbound time request.
func ParseClockRequest(m *o2msg.Message) (int, string, liberr.Error) {
	if len(m.Args) != 2 || m.Args[0].Type != 'i' || m.Args[1].Type != 's' {
		return 0, "", ErrorBadControl.Error(nil)
	}
	return int(m.Args[0].I), m.Args[1].S, nil
}

// NewClockReplyMessage builds the reference's answer: the echoed sequence
// id and the reference time, addressed straight back at reply_to.
func NewClockReplyMessage(replyTo string, seq int, refTime float64) *o2msg.Message {
	return &o2msg.Message{
		Address: replyTo,
		Args: []o2msg.Arg{
			o2msg.Int32(int32(seq)),
			o2msg.Time(refTime),
		},
	}
}

// ParseClockReply decodes a reference time reply.
func ParseClockReply(m *o2msg.Message) (int, float64, liberr.Error) {
	if len(m.Args) != 2 || m.Args[0].Type != 'i' || m.Args[1].Type != 't' {
		return 0, 0, ErrorBadControl.Error(nil)
	}
	return int(m.Args[0].I), m.Args[1].T, nil
}

// NewClockSyncedMessage announces this process's clock-sync acquisition
// to one peer.
func NewClockSyncedMessage(self o2nm.Name) *o2msg.Message {
	return &o2msg.Message{
		Address: AddressClockSynced,
		Flags:   o2msg.FlagTCP,
		Args:    []o2msg.Arg{o2msg.String(self.String())},
	}
}

// NewClockRestoreMessage builds the self-addressed timer that ends a
// rate-slew, carrying the rate-version that must still be current for the
// restore to take effect.
func NewClockRestoreMessage(version int) *o2msg.Message {
	return &o2msg.Message{
		Address: AddressClockRestore,
		Args:    []o2msg.Arg{o2msg.Int32(int32(version))},
	}
}

// replyAddress renders the exact-match reply address a ping carries.
func replyAddress(self o2nm.Name) string {
	return "!" + self.String() + clockReplySuffix
}
