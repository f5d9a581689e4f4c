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
	"fmt"

	libval "github.com/go-playground/validator/v10"
	libdur "github.com/sabouaram/o2/duration"
	liberr "github.com/sabouaram/o2/errors"
	liblog "github.com/sabouaram/o2/logger"
)

// Config parameterizes one O2 process.
type Config struct {
	// Ensemble is the group name; only peers presenting the same string
	// are talked to.
	Ensemble string `json:"ensemble" yaml:"ensemble" toml:"ensemble" mapstructure:"ensemble" validate:"required"`

	// ListenAddr is the TCP listen address, "host:0" by default so the
	// OS picks the port encoded into the process name.
	ListenAddr string `json:"listen-addr" yaml:"listen-addr" toml:"listen-addr" mapstructure:"listen-addr"`

	// DisableBroadcast turns the LAN announcement loop off; discovery
	// then relies on the gossip seeds, the hub, or the broker.
	DisableBroadcast bool `json:"disable-broadcast" yaml:"disable-broadcast" toml:"disable-broadcast" mapstructure:"disable-broadcast"`

	// GossipSeeds lists host:port addresses to join the SWIM mesh
	// through. Empty means no gossip.
	GossipSeeds []string `json:"gossip-seeds" yaml:"gossip-seeds" toml:"gossip-seeds" mapstructure:"gossip-seeds"`

	// Hub is the address of a peer asked to bootstrap us when broadcast
	// cannot reach it. Empty means no hub.
	Hub string `json:"hub" yaml:"hub" toml:"hub" mapstructure:"hub"`

	// BrokerURL points at the wide-area broker. Empty disables the
	// broker bridge.
	BrokerURL string `json:"broker-url" yaml:"broker-url" toml:"broker-url" mapstructure:"broker-url"`

	// StunServer is the host:port queried for the public IP. Empty skips
	// resolution and the process runs LAN-only (zero public IP).
	StunServer string `json:"stun-server" yaml:"stun-server" toml:"stun-server" mapstructure:"stun-server"`

	// StunTimeout bounds one STUN attempt. Five attempts are made before
	// giving up to LAN-only.
	StunTimeout libdur.Duration `json:"stun-timeout" yaml:"stun-timeout" toml:"stun-timeout" mapstructure:"stun-timeout"`

	// ConIdleTimeout applies to peer TCP connections; zero keeps them
	// open until hang-up.
	ConIdleTimeout libdur.Duration `json:"con-idle-timeout" yaml:"con-idle-timeout" toml:"con-idle-timeout" mapstructure:"con-idle-timeout"`

	logger liblog.FuncLog
}

// SetLogger installs the logger factory every long-running component of
// the process reports through.
func (c *Config) SetLogger(fct liblog.FuncLog) {
	c.logger = fct
}

// GetLogger returns the configured logger factory, possibly nil.
func (c *Config) GetLogger() liblog.FuncLog {
	return c.logger
}

// Validate checks the config for the minimum a process needs.
func (c *Config) Validate() liberr.Error {
	var e = ErrorValidatorError.Error(nil)

	if err := libval.New().Struct(c); err != nil {
		if er, ok := err.(*libval.InvalidValidationError); ok {
			e.Add(er)
		}

		for _, er := range err.(libval.ValidationErrors) {
			//nolint #goerr113
			e.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", er.Namespace(), er.ActualTag()))
		}
	}

	if !e.HasParent() {
		e = nil
	}

	return e
}
