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

package o2msg

import (
	liberr "github.com/sabouaram/o2/errors"
)

// Coerce converts args to the tags a handler declared, so a handler
// registered for "if" can receive a message sent as "dd". Numeric tags
// ('i', 'h', 'f', 'd', 't') interconvert; 'B' accepts any numeric
// (non-zero is true) or a bool; 's' and 'b' only match themselves. A
// length mismatch or an impossible conversion fails the whole list.
func Coerce(args []Arg, typespec string) ([]Arg, liberr.Error) {
	if len(args) != len(typespec) {
		return nil, ErrorBadArgs.Error(nil)
	}

	out := make([]Arg, len(args))
	for i, a := range args {
		c, err := coerceOne(a, typespec[i])
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func coerceOne(a Arg, want byte) (Arg, liberr.Error) {
	if a.Type == want {
		return a, nil
	}

	num, isNum := numericValue(a)

	switch want {
	case 'i':
		if isNum {
			return Int32(int32(num)), nil
		}
	case 'h':
		if isNum {
			return Int64(int64(num)), nil
		}
	case 'f':
		if isNum {
			return Float32(float32(num)), nil
		}
	case 'd':
		if isNum {
			return Float64(num), nil
		}
	case 't':
		if isNum {
			return Time(num), nil
		}
	case 'B':
		if isNum {
			return Bool(num != 0), nil
		}
	}

	return Arg{}, ErrorBadArgs.Error(nil)
}

func numericValue(a Arg) (float64, bool) {
	switch a.Type {
	case 'i':
		return float64(a.I), true
	case 'h':
		return float64(a.H), true
	case 'f':
		return float64(a.F), true
	case 'd':
		return a.D, true
	case 't':
		return a.T, true
	case 'B':
		if a.Bo {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
