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

package bridge_test

import (
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	libbr "github.com/sabouaram/o2/bridge"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
)

var _ = Describe("Registry", func() {
	var r *libbr.Registry

	BeforeEach(func() {
		r = libbr.NewRegistry()
	})

	It("registers a protocol once and rejects duplicates", func() {
		_, err := r.Register(libbr.TagSharedMem)
		Expect(err).ToNot(HaveOccurred())

		_, err = r.Register(libbr.TagSharedMem)
		Expect(err).To(HaveOccurred())
	})

	It("finds instances through their protocol", func() {
		proto, err := r.Register(libbr.TagSharedMem)
		Expect(err).ToNot(HaveOccurred())

		local, _ := libbr.NewSharedMemPair(
			o2nm.Name("@c0a80001:c0a80001:1f90"),
			o2nm.Name("@c0a80001:c0a80001:1f91"),
			nil, nil)
		proto.Add("helper", local)

		got, ok := proto.Get("helper")
		Expect(ok).To(BeTrue())
		Expect(got.Tag()).To(Equal(libbr.TagSharedMem))

		proto.Remove("helper")
		_, ok = proto.Get("helper")
		Expect(ok).To(BeFalse())
	})

	It("polls every instance of every protocol once per tick", func() {
		proto, err := r.Register(libbr.TagSharedMem)
		Expect(err).ToNot(HaveOccurred())

		var seen []string
		local, peer := libbr.NewSharedMemPair(
			o2nm.Name("@c0a80001:c0a80001:1f90"),
			o2nm.Name("@c0a80001:c0a80001:1f91"),
			func(m *o2msg.Message) { seen = append(seen, m.Address) },
			nil)
		proto.Add("helper", local)

		Expect(peer.Send(&o2msg.Message{Address: "/main/in"}, false)).To(Succeed())
		r.Poll(0)
		Expect(seen).To(Equal([]string{"/main/in"}))
	})
})

var _ = Describe("Shared-memory pair", func() {
	var (
		mainSide, helper *libbr.SharedMem
		mainGot          []*o2msg.Message
		helperGot        []*o2msg.Message
	)

	BeforeEach(func() {
		mainGot, helperGot = nil, nil
		mainSide, helper = libbr.NewSharedMemPair(
			o2nm.Name("@c0a80001:c0a80001:1f90"),
			o2nm.Name("@c0a80001:c0a80001:1f91"),
			func(m *o2msg.Message) { mainGot = append(mainGot, m) },
			func(m *o2msg.Message) { helperGot = append(helperGot, m) })
	})

	It("delivers queued messages in send order on the next poll", func() {
		for i := 0; i < 3; i++ {
			msg := &o2msg.Message{Address: fmt.Sprintf("/helper/%d", i)}
			Expect(mainSide.Send(msg, false)).To(Succeed())
		}

		Expect(helperGot).To(BeEmpty())
		helper.Poll(0)
		Expect(helperGot).To(HaveLen(3))
		for i, m := range helperGot {
			Expect(m.Address).To(Equal(fmt.Sprintf("/helper/%d", i)))
		}
	})

	It("carries traffic both directions independently", func() {
		Expect(mainSide.Send(&o2msg.Message{Address: "/helper/x"}, false)).To(Succeed())
		Expect(helper.Send(&o2msg.Message{Address: "/main/y"}, false)).To(Succeed())

		helper.Poll(0)
		mainSide.Poll(0)

		Expect(helperGot).To(HaveLen(1))
		Expect(mainGot).To(HaveLen(1))
	})

	It("survives concurrent producers without losing messages", func() {
		const producers, per = 8, 200

		var wg sync.WaitGroup
		for i := 0; i < producers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				for j := 0; j < per; j++ {
					Expect(mainSide.Send(&o2msg.Message{Address: "/helper/burst"}, false)).To(Succeed())
				}
			}()
		}
		wg.Wait()

		helper.Poll(0)
		Expect(helperGot).To(HaveLen(producers * per))
	})

	It("publishes the clock offset as a single atomic value", func() {
		Expect(mainSide.GlobalOffset()).To(Equal(0.0))
		mainSide.PublishGlobalOffset(1.25)
		Expect(mainSide.GlobalOffset()).To(Equal(1.25))
	})

	It("refuses to queue after close", func() {
		Expect(mainSide.Close()).To(Succeed())
		Expect(mainSide.Send(&o2msg.Message{Address: "/helper/x"}, false)).To(HaveOccurred())
	})
})
