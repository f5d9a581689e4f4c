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

// Package clocksync implements the reference-clock election and ping-based
// synchronization protocol: a ring buffer of RTT/
// offset samples, minimum-RTT sample selection, and the 1.1/0.9 rate-slewing
// policy used to correct drift without ever stepping time backwards.
package clocksync

import (
	"fmt"

	liberr "github.com/sabouaram/o2/errors"
)

const (
	ErrorIsReference liberr.CodeError = iota + liberr.MinPkgO2Clock
	ErrorNotSynced
	ErrorOutOfOrderReply
)

func init() {
	if liberr.ExistInMapMessage(ErrorIsReference) {
		panic(fmt.Errorf("error code collision with package clocksync"))
	}
	liberr.RegisterIdFctMessage(ErrorIsReference, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorIsReference:
		return "operation not valid on the reference clock process"
	case ErrorNotSynced:
		return "process is not yet clock-synchronized"
	case ErrorOutOfOrderReply:
		return "clock ping reply sequence id is stale"
	}

	return liberr.NullMessage
}
