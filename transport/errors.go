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

// Package transport implements the non-blocking socket core connecting
// peers: length-prefixed TCP framing, a bounded per-connection send queue
// that reports O2_BLOCKED instead of stalling the caller, UDP datagram
// send/receive, and idempotent connection teardown.
package transport

import (
	"fmt"

	liberr "github.com/sabouaram/o2/errors"
)

const (
	ErrorBlocked liberr.CodeError = iota + liberr.MinPkgO2Transport
	ErrorClosed
	ErrorFrameTooLarge
	ErrorListen
)

func init() {
	if liberr.ExistInMapMessage(ErrorBlocked) {
		panic(fmt.Errorf("error code collision with package transport"))
	}
	liberr.RegisterIdFctMessage(ErrorBlocked, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorBlocked:
		return "send queue full: O2_BLOCKED"
	case ErrorClosed:
		return "connection is closed"
	case ErrorFrameTooLarge:
		return "inbound frame exceeds the configured maximum size"
	case ErrorListen:
		return "cannot bind the listen address"
	}

	return liberr.NullMessage
}
