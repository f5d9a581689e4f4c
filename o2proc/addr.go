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

package o2proc

import (
	"crypto/rand"
	"encoding/binary"
	"net"
	"time"

	liberr "github.com/sabouaram/o2/errors"
	liblog "github.com/sabouaram/o2/logger"
	loglvl "github.com/sabouaram/o2/logger/level"
)

// stunMagic is the fixed cookie every binding request and response carry.
const stunMagic = 0x2112A442

// stunAttempts is how many binding requests are sent before the process
// gives up and continues with a zero public IP (LAN-only).
const stunAttempts = 5

// InternalIP returns the first non-loopback IPv4 address of this host.
func InternalIP() (net.IP, liberr.Error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, ErrorNoNetwork.ErrorParent(err)
	}

	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}

	return nil, ErrorNoNetwork.Error(nil)
}

// ResolvePublicAddress queries a STUN-style responder for this host's
// public IPv4 address. Up to stunAttempts binding requests are made, each
// bounded by timeout; on total failure the zero IPv4 address is returned
// together with ErrorStunNoReply, and the caller proceeds LAN-only.
func ResolvePublicAddress(server string, timeout time.Duration, log liblog.FuncLog) (net.IP, liberr.Error) {
	zero := net.IPv4zero.To4()

	if server == "" {
		return zero, nil
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}

	for i := 0; i < stunAttempts; i++ {
		ip, err := stunQuery(server, timeout)
		if err == nil {
			return ip, nil
		}
		if log != nil {
			if lg := log(); lg != nil {
				lg.Entry(loglvl.DebugLevel, "stun attempt %d/%d failed: %v", i+1, stunAttempts, err).Log()
			}
		}
	}

	return zero, ErrorStunNoReply.Error(nil)
}

func stunQuery(server string, timeout time.Duration) (net.IP, error) {
	conn, err := net.Dial("udp", server)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	req := make([]byte, 20)
	binary.BigEndian.PutUint16(req[0:2], 0x0001)
	binary.BigEndian.PutUint32(req[4:8], stunMagic)
	if _, err = rand.Read(req[8:20]); err != nil {
		return nil, err
	}

	if err = conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	if _, err = conn.Write(req); err != nil {
		return nil, err
	}

	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}

	return parseStunResponse(buf[:n], req[8:20])
}

func parseStunResponse(resp, txn []byte) (net.IP, error) {
	if len(resp) < 20 || binary.BigEndian.Uint16(resp[0:2]) != 0x0101 {
		return nil, ErrorStunNoReply.Error(nil)
	}
	if string(resp[8:20]) != string(txn) {
		return nil, ErrorStunNoReply.Error(nil)
	}

	attrs := resp[20:]
	for len(attrs) >= 4 {
		typ := binary.BigEndian.Uint16(attrs[0:2])
		length := int(binary.BigEndian.Uint16(attrs[2:4]))
		if len(attrs) < 4+length {
			break
		}
		val := attrs[4 : 4+length]

		switch typ {
		case 0x0020: // xor-mapped address
			if len(val) >= 8 && val[1] == 0x01 {
				ip := make(net.IP, 4)
				binary.BigEndian.PutUint32(ip, binary.BigEndian.Uint32(val[4:8])^stunMagic)
				return ip, nil
			}
		case 0x0001: // mapped address
			if len(val) >= 8 && val[1] == 0x01 {
				return net.IPv4(val[4], val[5], val[6], val[7]).To4(), nil
			}
		}

		pad := (4 - length%4) % 4
		attrs = attrs[4+length+pad:]
	}

	return nil, ErrorStunNoReply.Error(nil)
}
