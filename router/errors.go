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

// Package router turns an addressed message into deliveries: it
// fingerprints the address's service name against the directory, then
// hands the message to a local handler tree, a single local handler, or
// a proxy standing in for a remote destination. Timestamped messages
// whose provider cannot schedule on its own are parked on the
// global-time wheel and re-sent when due. After normal delivery, every
// tap on the service receives its own copy.
package router

import (
	"fmt"

	liberr "github.com/sabouaram/o2/errors"
)

const (
	ErrorNoService liberr.CodeError = iota + liberr.MinPkgO2Router
	ErrorNoHandler
	ErrorBadAddress
	ErrorBadProvider
	ErrorNoClock
)

func init() {
	if liberr.ExistInMapMessage(ErrorNoService) {
		panic(fmt.Errorf("error code collision with package router"))
	}
	liberr.RegisterIdFctMessage(ErrorNoService, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorNoService:
		return "no provider for the addressed service"
	case ErrorNoHandler:
		return "no handler matches the address"
	case ErrorBadAddress:
		return "address is empty or lacks a service segment"
	case ErrorBadProvider:
		return "provider carries no usable handle"
	case ErrorNoClock:
		return "timestamped message needs an active global clock"
	}

	return liberr.NullMessage
}
