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

// Package bridge lets non-IP transports host services: a registry of
// named, 8-char-tagged protocols, each owning a list of instances that act
// as proxy.Proxy for whatever it connects to. Three protocols are provided:
// a shared-memory bridge (in-process, ABA-protected lock-free queues), an
// O2lite bridge (a thin TCP client routed through the transport package's
// socket core) and a WebSocket bridge (golang.org/x/net/websocket). A fourth,
// the wide-area broker bridge, lives in bridge/mqtt.go and stands in for the
// MQTT-style broker transport using NATS, a documented
// substitution.
package bridge

import (
	"fmt"

	liberr "github.com/sabouaram/o2/errors"
)

const (
	ErrorUnknownProtocol liberr.CodeError = iota + liberr.MinPkgO2Bridge
	ErrorDuplicateProtocol
	ErrorInstanceClosed
	ErrorQueueFull
)

func init() {
	if liberr.ExistInMapMessage(ErrorUnknownProtocol) {
		panic(fmt.Errorf("error code collision with package bridge"))
	}
	liberr.RegisterIdFctMessage(ErrorUnknownProtocol, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorUnknownProtocol:
		return "no bridge protocol registered under that tag"
	case ErrorDuplicateProtocol:
		return "a bridge protocol is already registered under that tag"
	case ErrorInstanceClosed:
		return "bridge instance is closed"
	case ErrorQueueFull:
		return "bridge instance queue is full"
	}

	return liberr.NullMessage
}
