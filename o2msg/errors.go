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

// Package o2msg implements the O2 message record and its wire encoding: a
// 4-byte length prefix, flags, an f64 global timestamp, a null-padded
// address, a comma-prefixed null-padded type-tag string, and type-tagged
// arguments.
package o2msg

import (
	"fmt"

	liberr "github.com/sabouaram/o2/errors"
)

const (
	ErrorInvalidMessage liberr.CodeError = iota + liberr.MinPkgO2Message
	ErrorBadAddress
	ErrorBadTypeTag
	ErrorBadArgs
	ErrorTruncated
	ErrorUnknownArgType
)

func init() {
	if liberr.ExistInMapMessage(ErrorInvalidMessage) {
		panic(fmt.Errorf("error code collision with package o2msg"))
	}
	liberr.RegisterIdFctMessage(ErrorInvalidMessage, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorInvalidMessage:
		return "malformed o2 message"
	case ErrorBadAddress:
		return "message address is empty or does not start with '/' or '!'"
	case ErrorBadTypeTag:
		return "message type-tag string is malformed"
	case ErrorBadArgs:
		return "message arguments do not match the declared type-tag string"
	case ErrorTruncated:
		return "message buffer is shorter than its declared length"
	case ErrorUnknownArgType:
		return "unknown argument type-tag character"
	}

	return liberr.NullMessage
}
