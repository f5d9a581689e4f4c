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
	libdir "github.com/sabouaram/o2/directory"
	liberr "github.com/sabouaram/o2/errors"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
)

// AddressSv carries service-list deltas and the full snapshot a process
// sends right after a peer connects.
const AddressSv = "/_o2/sv"

// NewServiceMessage encodes one or more directory mutations into a single
// reliable control message. The first argument is the sender's process
// name; then, per mutation: service, add flag, service-or-tap flag,
// tapper-or-properties string, and send mode.
func NewServiceMessage(from o2nm.Name, muts []libdir.Mutation) *o2msg.Message {
	args := make([]o2msg.Arg, 0, 1+len(muts)*5)
	args = append(args, o2msg.String(from.String()))

	for _, m := range muts {
		var (
			add       bool
			isService bool
			field     string
		)

		switch m.Kind {
		case libdir.MutationAddService:
			add, isService, field = true, true, m.Properties
		case libdir.MutationRemoveService:
			add, isService = false, true
		case libdir.MutationAddTap:
			add, isService, field = true, false, m.TapperService
		case libdir.MutationRemoveTap:
			add, isService, field = false, false, m.TapperService
		}

		args = append(args,
			o2msg.String(m.Service),
			o2msg.Bool(add),
			o2msg.Bool(isService),
			o2msg.String(field),
			o2msg.Int32(int32(m.Mode)),
		)
	}

	return &o2msg.Message{
		Address: AddressSv,
		Flags:   o2msg.FlagTCP,
		Args:    args,
	}
}

// ParseServiceMessage decodes an inbound service-list message into the
// sending process name and its mutations, each attributed to that sender.
func ParseServiceMessage(m *o2msg.Message) (o2nm.Name, []libdir.Mutation, liberr.Error) {
	if len(m.Args) < 1 || m.Args[0].Type != 's' {
		return o2nm.Empty, nil, ErrorBadControl.Error(nil)
	}
	if (len(m.Args)-1)%5 != 0 {
		return o2nm.Empty, nil, ErrorBadControl.Error(nil)
	}

	from, err := o2nm.Parse(m.Args[0].S)
	if err != nil {
		return o2nm.Empty, nil, ErrorBadControl.ErrorParent(err)
	}

	muts := make([]libdir.Mutation, 0, (len(m.Args)-1)/5)
	for i := 1; i+5 <= len(m.Args); i += 5 {
		g := m.Args[i : i+5]
		if g[0].Type != 's' || g[1].Type != 'B' || g[2].Type != 'B' || g[3].Type != 's' || g[4].Type != 'i' {
			return o2nm.Empty, nil, ErrorBadControl.Error(nil)
		}

		mut := libdir.Mutation{
			Service: g[0].S,
			Process: from,
			Mode:    libdir.SendMode(g[4].I),
		}

		switch {
		case g[1].Bo && g[2].Bo:
			mut.Kind = libdir.MutationAddService
			mut.Properties = g[3].S
		case !g[1].Bo && g[2].Bo:
			mut.Kind = libdir.MutationRemoveService
		case g[1].Bo && !g[2].Bo:
			mut.Kind = libdir.MutationAddTap
			mut.TapperService = g[3].S
		default:
			mut.Kind = libdir.MutationRemoveTap
			mut.TapperService = g[3].S
		}

		muts = append(muts, mut)
	}

	return from, muts, nil
}

// SnapshotMutations flattens the local process's own services and taps
// into the mutation list a freshly connected peer receives as baseline.
func SnapshotMutations(d *libdir.Directory, self o2nm.Name) []libdir.Mutation {
	var out []libdir.Mutation

	for _, e := range d.Snapshot() {
		for _, p := range e.Providers {
			if !p.Kind.IsLocal() {
				continue
			}
			out = append(out, libdir.Mutation{
				Kind:       libdir.MutationAddService,
				Service:    e.Name,
				Process:    self,
				Properties: p.Properties,
			})
		}
		for _, t := range e.Taps {
			if t.TapperProcess != self {
				continue
			}
			out = append(out, libdir.Mutation{
				Kind:          libdir.MutationAddTap,
				Service:       e.Name,
				Process:       self,
				TapperService: t.TapperService,
				Mode:          t.Mode,
			})
		}
	}

	return out
}
