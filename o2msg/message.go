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
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	liberr "github.com/sabouaram/o2/errors"
)

// Flags carries the tcp/udp delivery bit.
type Flags uint32

const (
	// FlagTCP marks a message as having arrived, or being destined, over TCP.
	// The absence of this bit means UDP.
	FlagTCP Flags = 1 << 0
)

// Message is the in-memory record: length (implicit: a TCP frame's length
// field is len(Encode())+4, counting the flags word), flags, a global timestamp, a path address, a type-tag string and a typed
// argument list. Messages are built in host order and converted to/from
// network order only at the TCP/UDP boundary (Encode/Decode do that).
type Message struct {
	Flags     Flags
	Timestamp float64
	Address   string
	Args      []Arg
}

// TypeTagString returns the ',' + per-arg tag characters string carried on
// the wire, without the null padding.
func (m *Message) TypeTagString() string {
	b := make([]byte, 0, len(m.Args)+1)
	b = append(b, ',')
	for _, a := range m.Args {
		b = append(b, a.Type)
	}
	return string(b)
}

// IsTCP reports whether the message carries the TCP delivery flag.
func (m *Message) IsTCP() bool { return m.Flags&FlagTCP != 0 }

// ServiceName extracts the first path segment after the leading '/' or '!',
// step 1 of message_send.
func (m *Message) ServiceName() string {
	addr := m.Address
	if addr == "" {
		return ""
	}
	if addr[0] == '/' || addr[0] == '!' {
		addr = addr[1:]
	}
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		return addr[:i]
	}
	return addr
}

func pad4(n int) int {
	r := n % 4
	if r == 0 {
		return n
	}
	return n + (4 - r)
}

func writePadded(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}

// Encode serializes the message body (timestamp, address, type-tag string,
// args) in network byte order, WITHOUT the 4-byte length prefix or the
// flags word — callers writing to a TCP socket must prepend both
// wire format; UDP callers send this payload verbatim in one datagram.
func (m *Message) Encode() ([]byte, liberr.Error) {
	if m.Address == "" {
		return nil, ErrorBadAddress.Error(nil)
	}

	buf := &bytes.Buffer{}

	_ = binary.Write(buf, binary.BigEndian, m.Timestamp)
	writePadded(buf, m.Address)
	writePadded(buf, m.TypeTagString())

	for _, a := range m.Args {
		if e := encodeArg(buf, a); e != nil {
			return nil, e
		}
	}

	return buf.Bytes(), nil
}

// EncodeFrame serializes a complete TCP frame: [u32 length][u32 flags][body...].
// length counts everything after the length field itself.
func (m *Message) EncodeFrame() ([]byte, liberr.Error) {
	body, err := m.Encode()
	if err != nil {
		return nil, err
	}

	out := &bytes.Buffer{}
	_ = binary.Write(out, binary.BigEndian, uint32(len(body)+4))
	_ = binary.Write(out, binary.BigEndian, uint32(m.Flags))
	out.Write(body)
	return out.Bytes(), nil
}

func encodeArg(buf *bytes.Buffer, a Arg) liberr.Error {
	switch a.Type {
	case 'i':
		return binErr(binary.Write(buf, binary.BigEndian, a.I))
	case 'h':
		return binErr(binary.Write(buf, binary.BigEndian, a.H))
	case 'f':
		return binErr(binary.Write(buf, binary.BigEndian, a.F))
	case 'd':
		return binErr(binary.Write(buf, binary.BigEndian, a.D))
	case 't':
		return binErr(binary.Write(buf, binary.BigEndian, a.T))
	case 's':
		writePadded(buf, a.S)
		return nil
	case 'b':
		if e := binErr(binary.Write(buf, binary.BigEndian, int32(len(a.Bl)))); e != nil {
			return e
		}
		buf.Write(a.Bl)
		for buf.Len()%4 != 0 {
			buf.WriteByte(0)
		}
		return nil
	case 'B':
		v := byte(0)
		if a.Bo {
			v = 1
		}
		buf.WriteByte(v)
		buf.WriteByte(0)
		buf.WriteByte(0)
		buf.WriteByte(0)
		return nil
	case 'v':
		if e := binErr(binary.Write(buf, binary.BigEndian, int32(len(a.Vec)))); e != nil {
			return e
		}
		for _, sub := range a.Vec {
			buf.WriteByte(sub.Type)
			if e := encodeArg(buf, sub); e != nil {
				return e
			}
		}
		return nil
	case 'a':
		if e := binErr(binary.Write(buf, binary.BigEndian, int32(len(a.Array)))); e != nil {
			return e
		}
		for _, sub := range a.Array {
			buf.WriteByte(sub.Type)
			if e := encodeArg(buf, sub); e != nil {
				return e
			}
		}
		return nil
	default:
		return ErrorUnknownArgType.Error(nil)
	}
}

func binErr(e error) liberr.Error {
	if e == nil {
		return nil
	}
	return ErrorBadArgs.ErrorParent(e)
}

// DecodeFrameLength reads the 4-byte big-endian length prefix used by TCP
// framing: the caller's socket core must accumulate exactly this many
// further bytes before calling DecodeFrame.
func DecodeFrameLength(prefix []byte) (uint32, liberr.Error) {
	if len(prefix) < 4 {
		return 0, ErrorTruncated.Error(nil)
	}
	return binary.BigEndian.Uint32(prefix[:4]), nil
}

// DecodeFrame parses a complete TCP frame body (flags word + message body,
// i.e. everything the length prefix counted).
func DecodeFrame(b []byte) (*Message, liberr.Error) {
	if len(b) < 4 {
		return nil, ErrorTruncated.Error(nil)
	}
	flags := Flags(binary.BigEndian.Uint32(b[:4]))
	m, err := Decode(b[4:])
	if err != nil {
		return nil, err
	}
	m.Flags = flags
	return m, nil
}

// Decode parses a message body (timestamp, address, type-tag string, args)
// as produced by Encode.
func Decode(b []byte) (*Message, liberr.Error) {
	r := bytes.NewReader(b)

	var ts float64
	if e := binary.Read(r, binary.BigEndian, &ts); e != nil {
		return nil, ErrorTruncated.ErrorParent(e)
	}

	addr, e := readPadded(r)
	if e != nil {
		return nil, e
	}
	if addr == "" || (addr[0] != '/' && addr[0] != '!') {
		return nil, ErrorBadAddress.Error(nil)
	}

	tags, e := readPadded(r)
	if e != nil {
		return nil, e
	}
	if len(tags) == 0 || tags[0] != ',' {
		return nil, ErrorBadTypeTag.Error(nil)
	}
	tags = tags[1:]

	args := make([]Arg, 0, len(tags))
	for _, t := range []byte(tags) {
		a, e := decodeArg(r, t)
		if e != nil {
			return nil, e
		}
		args = append(args, a)
	}

	return &Message{Timestamp: ts, Address: addr, Args: args}, nil
}

func readPadded(r *bytes.Reader) (string, liberr.Error) {
	start := r.Len()
	var out []byte
	for {
		c, e := r.ReadByte()
		if e != nil {
			return "", ErrorTruncated.ErrorParent(e)
		}
		if c == 0 {
			break
		}
		out = append(out, c)
	}
	consumed := start - r.Len()
	for consumed%4 != 0 {
		if _, e := r.ReadByte(); e != nil {
			return "", ErrorTruncated.ErrorParent(e)
		}
		consumed++
	}
	return string(out), nil
}

func decodeArg(r *bytes.Reader, tag byte) (Arg, liberr.Error) {
	switch tag {
	case 'i':
		var v int32
		if e := binary.Read(r, binary.BigEndian, &v); e != nil {
			return Arg{}, ErrorTruncated.ErrorParent(e)
		}
		return Int32(v), nil
	case 'h':
		var v int64
		if e := binary.Read(r, binary.BigEndian, &v); e != nil {
			return Arg{}, ErrorTruncated.ErrorParent(e)
		}
		return Int64(v), nil
	case 'f':
		var v float32
		if e := binary.Read(r, binary.BigEndian, &v); e != nil {
			return Arg{}, ErrorTruncated.ErrorParent(e)
		}
		return Float32(v), nil
	case 'd':
		var v float64
		if e := binary.Read(r, binary.BigEndian, &v); e != nil {
			return Arg{}, ErrorTruncated.ErrorParent(e)
		}
		return Float64(v), nil
	case 't':
		var v float64
		if e := binary.Read(r, binary.BigEndian, &v); e != nil {
			return Arg{}, ErrorTruncated.ErrorParent(e)
		}
		return Time(v), nil
	case 's':
		s, e := readPadded(r)
		if e != nil {
			return Arg{}, e
		}
		return String(s), nil
	case 'b':
		var n int32
		if e := binary.Read(r, binary.BigEndian, &n); e != nil {
			return Arg{}, ErrorTruncated.ErrorParent(e)
		}
		if n < 0 {
			return Arg{}, ErrorBadArgs.Error(nil)
		}
		data := make([]byte, n)
		if _, e := io.ReadFull(r, data); e != nil {
			return Arg{}, ErrorTruncated.ErrorParent(e)
		}
		for i := int(n); i%4 != 0; i++ {
			if _, e := r.ReadByte(); e != nil {
				return Arg{}, ErrorTruncated.ErrorParent(e)
			}
		}
		return Blob(data), nil
	case 'B':
		b := make([]byte, 4)
		if _, e := io.ReadFull(r, b); e != nil {
			return Arg{}, ErrorTruncated.ErrorParent(e)
		}
		return Bool(b[0] != 0), nil
	case 'v':
		elems, e := decodeArgList(r)
		if e != nil {
			return Arg{}, e
		}
		return Vector(elems...), nil
	case 'a':
		elems, e := decodeArgList(r)
		if e != nil {
			return Arg{}, e
		}
		return Array(elems...), nil
	default:
		return Arg{}, ErrorUnknownArgType.Error(nil)
	}
}

func decodeArgList(r *bytes.Reader) ([]Arg, liberr.Error) {
	var n int32
	if e := binary.Read(r, binary.BigEndian, &n); e != nil {
		return nil, ErrorTruncated.ErrorParent(e)
	}
	if n < 0 {
		return nil, ErrorBadArgs.Error(nil)
	}
	out := make([]Arg, 0, n)
	for i := int32(0); i < n; i++ {
		tag, e := r.ReadByte()
		if e != nil {
			return nil, ErrorTruncated.ErrorParent(e)
		}
		a, e2 := decodeArg(r, tag)
		if e2 != nil {
			return nil, e2
		}
		out = append(out, a)
	}
	return out, nil
}
