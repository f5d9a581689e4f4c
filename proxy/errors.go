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

// Package proxy defines the capability interface that stands in for any
// non-local service provider: a remote O2 process reached over
// TCP/UDP, an OSC delegate, a bridge endpoint, or an MQTT-routed peer.
package proxy

import (
	"fmt"

	liberr "github.com/sabouaram/o2/errors"
)

const (
	ErrorBlocked liberr.CodeError = iota + liberr.MinPkgO2Proxy
	ErrorClosed
	ErrorNotConnected
)

func init() {
	if liberr.ExistInMapMessage(ErrorBlocked) {
		panic(fmt.Errorf("error code collision with package proxy"))
	}
	liberr.RegisterIdFctMessage(ErrorBlocked, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorBlocked:
		return "proxy send queue is full (O2_BLOCKED)"
	case ErrorClosed:
		return "proxy is closed"
	case ErrorNotConnected:
		return "proxy has no live connection"
	}

	return liberr.NullMessage
}
