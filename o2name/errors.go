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

// Package o2name implements the O2 process name: @public-ip:internal-ip:tcp-port
// hex-encoded, used for lexicographic tie-breaking of connection roles and
// concurrent service providers.
package o2name

import (
	"fmt"

	liberr "github.com/sabouaram/o2/errors"
)

const (
	ErrorInvalidFormat liberr.CodeError = iota + liberr.MinPkgO2Name
	ErrorInvalidField
	ErrorEmptyInput
)

func init() {
	if liberr.ExistInMapMessage(ErrorInvalidFormat) {
		panic(fmt.Errorf("error code collision with package o2name"))
	}
	liberr.RegisterIdFctMessage(ErrorInvalidFormat, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorInvalidFormat:
		return "process name is not in @public:internal:port hex format"
	case ErrorInvalidField:
		return "process name field is not valid hexadecimal"
	case ErrorEmptyInput:
		return "process name input is empty"
	}

	return liberr.NullMessage
}
