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

// Arg is one typed argument carried by a Message. Exactly one of the typed
// fields is meaningful for a given Type; Type is always one of the tag
// characters the codec in message.go understands.
type Arg struct {
	Type  byte
	I     int32
	H     int64
	F     float32
	D     float64
	S     string
	Bl    []byte // blob ('b')
	Bo    bool   // bool ('B')
	T     float64
	Vec   []Arg // vector ('v'), homogeneous
	Array []Arg // array ('a'), heterogeneous
}

// Int32 builds an 'i' argument.
func Int32(v int32) Arg { return Arg{Type: 'i', I: v} }

// Int64 builds an 'h' argument.
func Int64(v int64) Arg { return Arg{Type: 'h', H: v} }

// Float32 builds an 'f' argument.
func Float32(v float32) Arg { return Arg{Type: 'f', F: v} }

// Float64 builds a 'd' argument.
func Float64(v float64) Arg { return Arg{Type: 'd', D: v} }

// String builds an 's' argument.
func String(v string) Arg { return Arg{Type: 's', S: v} }

// Blob builds a 'b' argument.
func Blob(v []byte) Arg { return Arg{Type: 'b', Bl: v} }

// Bool builds a 'B' argument (the O2 boolean extension to OSC).
func Bool(v bool) Arg { return Arg{Type: 'B', Bo: v} }

// Time builds a 't' argument: a global timestamp expressed as f64 seconds.
func Time(v float64) Arg { return Arg{Type: 't', T: v} }

// Vector builds a 'v' argument: a homogeneous run of values.
func Vector(elems ...Arg) Arg { return Arg{Type: 'v', Vec: elems} }

// Array builds an 'a' argument: a heterogeneous bundle of values.
func Array(elems ...Arg) Arg { return Arg{Type: 'a', Array: elems} }

// TypeTag returns the single-character O2/OSC type tag for this argument.
func (a Arg) TypeTag() byte { return a.Type }
