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

package o2name

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	liberr "github.com/sabouaram/o2/errors"
)

// Name is a process name: "@PPPPPPPP:IIIIIIII:TTTT", each field an 8 or
// 4-char hex string (public IP, internal IP, TCP port). String comparison
// of Name is used directly for tie-breaking: the format is fixed-width so
// lexicographic order on the string equals numeric order on each field in
// turn.
type Name string

// Empty is the zero-value process name, never a valid provider name.
const Empty Name = ""

// New builds a Name from a public IPv4, internal IPv4 and TCP port.
func New(public, internal net.IP, port uint16) Name {
	return Name(fmt.Sprintf("@%08x:%08x:%04x", ip4ToUint32(public), ip4ToUint32(internal), port))
}

func ip4ToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

// Parse validates and normalizes a process name string.
func Parse(s string) (Name, liberr.Error) {
	if s == "" {
		return Empty, ErrorEmptyInput.Error(nil)
	}

	if s[0] != '@' {
		return Empty, ErrorInvalidFormat.Error(nil)
	}

	parts := strings.Split(s[1:], ":")
	if len(parts) != 3 {
		return Empty, ErrorInvalidFormat.Error(nil)
	}

	if len(parts[0]) != 8 || len(parts[1]) != 8 || len(parts[2]) != 4 {
		return Empty, ErrorInvalidFormat.Error(nil)
	}

	for _, p := range parts {
		if _, e := strconv.ParseUint(p, 16, 32); e != nil {
			return Empty, ErrorInvalidField.ErrorParent(e)
		}
	}

	return Name("@" + strings.ToLower(parts[0]) + ":" + strings.ToLower(parts[1]) + ":" + strings.ToLower(parts[2])), nil
}

// Valid reports whether the name round-trips through Parse.
func (n Name) Valid() bool {
	_, err := Parse(string(n))
	return err == nil
}

// String implements fmt.Stringer.
func (n Name) String() string {
	return string(n)
}

func (n Name) fields() []string {
	if len(n) < 1 || n[0] != '@' {
		return nil
	}
	return strings.Split(string(n[1:]), ":")
}

// PublicIPHex returns the public-IP hex field.
func (n Name) PublicIPHex() string {
	if f := n.fields(); len(f) == 3 {
		return f[0]
	}
	return ""
}

// InternalIPHex returns the internal-IP hex field.
func (n Name) InternalIPHex() string {
	if f := n.fields(); len(f) == 3 {
		return f[1]
	}
	return ""
}

// Port returns the TCP port encoded in the name.
func (n Name) Port() uint16 {
	f := n.fields()
	if len(f) != 3 {
		return 0
	}
	v, e := strconv.ParseUint(f[2], 16, 16)
	if e != nil {
		return 0
	}
	return uint16(v)
}

// SamePublicIP reports whether two names share a public IP, the signal used
// by the MQTT/broker bridge to decide whether to upgrade to direct TCP.
func (n Name) SamePublicIP(other Name) bool {
	return n.PublicIPHex() == other.PublicIPHex() && n.PublicIPHex() != ""
}

// Less implements the name tie-break: returns true if n precedes other.
func (n Name) Less(other Name) bool {
	return n < other
}

// Greater returns true if n is the lexicographically greater of the two, the
// rule used everywhere an "active provider" or "TCP server role" must be
// chosen among two process names.
func (n Name) Greater(other Name) bool {
	return n > other
}
