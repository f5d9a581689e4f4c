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

// Package o2proc assembles the pieces into one runnable process: it binds
// the TCP/UDP ports, resolves the process name, runs discovery and the
// clock protocol over the reserved address space, owns the service
// directory and both schedulers, and exposes the user-facing operations
// (services, methods, taps, sends, status) behind a single Poll-driven
// lifecycle.
package o2proc

import (
	"fmt"

	liberr "github.com/sabouaram/o2/errors"
)

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinPkgO2Process
	ErrorNotInitialized
	ErrorAlreadyRunning
	ErrorBadServiceName
	ErrorNoNetwork
	ErrorStunNoReply
	ErrorPeerUnknown
	ErrorBadControl
	ErrorClockAlreadySet
	ErrorValidatorError
	ErrorMessageDropped
)

// maxDropDiagnostics bounds the drop-diagnostics pool; the pool is
// emptied before the bound is crossed.
const maxDropDiagnostics = 256

func init() {
	if liberr.ExistInMapMessage(ErrorParamEmpty) {
		panic(fmt.Errorf("error code collision with package o2proc"))
	}
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorParamEmpty:
		return "at least one required config parameter is empty"
	case ErrorNotInitialized:
		return "process is not initialized"
	case ErrorAlreadyRunning:
		return "process is already running"
	case ErrorBadServiceName:
		return "service name is empty or contains a path separator"
	case ErrorNoNetwork:
		return "no usable network interface"
	case ErrorStunNoReply:
		return "no STUN reply, continuing LAN-only"
	case ErrorPeerUnknown:
		return "peer process is not in the process table"
	case ErrorBadControl:
		return "malformed reserved-address control message"
	case ErrorClockAlreadySet:
		return "reference clock is already set"
	case ErrorValidatorError:
		return "invalid config, validation error"
	case ErrorMessageDropped:
		return "message to '%s' dropped: %s"
	}

	return liberr.NullMessage
}
