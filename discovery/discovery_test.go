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

package discovery_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	dsc "github.com/sabouaram/o2/discovery"
	o2msg "github.com/sabouaram/o2/o2msg"
	o2nm "github.com/sabouaram/o2/o2name"
)

var _ = Describe("Announcements", func() {
	var (
		alice = o2nm.Name("@c0a80001:c0a80001:1f90")
		bob   = o2nm.Name("@c0a80002:c0a80002:1f91")
	)

	Context("building and parsing", func() {
		It("round-trips through the wire codec", func() {
			m := dsc.NewAnnounceMessage("studio", alice, dsc.FlagInfo)
			Expect(m.Address).To(Equal(dsc.AddressDy))
			Expect(m.TypeTagString()).To(Equal(",sssii"))

			body, err := m.Encode()
			Expect(err).ToNot(HaveOccurred())

			back, err := o2msg.Decode(body)
			Expect(err).ToNot(HaveOccurred())

			a, err := dsc.ParseAnnounce(back, "studio")
			Expect(err).ToNot(HaveOccurred())
			Expect(a.Name()).To(Equal(alice))
			Expect(a.Flag).To(Equal(dsc.FlagInfo))
			Expect(a.Port).To(Equal(uint16(0x1f90)))
		})

		It("rejects a foreign ensemble", func() {
			m := dsc.NewAnnounceMessage("studio", alice, dsc.FlagInfo)
			_, err := dsc.ParseAnnounce(m, "stage")
			Expect(err).To(HaveOccurred())
			Expect(err.IsCode(dsc.ErrorWrongEnsemble)).To(BeTrue())
		})

		It("rejects a malformed argument list", func() {
			m := &o2msg.Message{
				Address: dsc.AddressDy,
				Args:    []o2msg.Arg{o2msg.String("studio")},
			}
			_, err := dsc.ParseAnnounce(m, "studio")
			Expect(err).To(HaveOccurred())
		})
	})

	Context("pairwise connection rule", func() {
		It("makes the greater name the server", func() {
			Expect(dsc.IsServer(bob, alice)).To(BeTrue())
			Expect(dsc.IsServer(alice, bob)).To(BeFalse())
		})
	})

	Context("hub peer list", func() {
		It("builds one reliable announcement per known peer", func() {
			msgs := dsc.HubPeerList("studio", []o2nm.Name{alice, bob})
			Expect(msgs).To(HaveLen(2))
			for _, m := range msgs {
				Expect(m.Address).To(Equal(dsc.AddressDy))
				Expect(m.IsTCP()).To(BeTrue())
			}

			a, err := dsc.ParseAnnounce(msgs[0], "studio")
			Expect(err).ToNot(HaveOccurred())
			Expect(a.Name()).To(Equal(alice))
		})
	})
})

var _ = Describe("Backoff", func() {
	It("starts at 100ms, multiplies by 1.125, caps at 4s", func() {
		b := dsc.NewBackoff()
		Expect(b.Next()).To(BeNumerically("~", 0.1, 1e-9))
		Expect(b.Next()).To(BeNumerically("~", 0.1125, 1e-9))

		var last float64
		for i := 0; i < 100; i++ {
			last = b.Next()
		}
		Expect(last).To(Equal(4.0))

		b.Reset()
		Expect(b.Next()).To(BeNumerically("~", 0.1, 1e-9))
	})
})

var _ = Describe("Broker discovery", func() {
	var (
		lanA    = o2nm.Name("@00000000:c0a80001:1f90")
		siteA   = o2nm.Name("@51a2b3c4:c0a80001:1f90")
		siteB   = o2nm.Name("@51a2b3c4:c0a80002:1f91")
		farPeer = o2nm.Name("@7f000001:0a000001:2001")
	)

	It("renders and parses the /dy payload", func() {
		p := dsc.BrokerPayload(siteA, false)
		Expect(p).To(HaveSuffix("/dy"))

		peer, err := dsc.ParseBrokerPayload(p)
		Expect(err).ToNot(HaveOccurred())
		Expect(peer.Name).To(Equal(siteA))
		Expect(peer.ClockSynced).To(BeFalse())
	})

	It("renders and parses the /cs payload", func() {
		peer, err := dsc.ParseBrokerPayload(dsc.BrokerPayload(siteB, true))
		Expect(err).ToNot(HaveOccurred())
		Expect(peer.Name).To(Equal(siteB))
		Expect(peer.ClockSynced).To(BeTrue())
	})

	It("rejects an unsuffixed payload", func() {
		_, err := dsc.ParseBrokerPayload(siteA.String())
		Expect(err).To(HaveOccurred())
	})

	It("upgrades same-site peers to direct TCP", func() {
		Expect(dsc.Categorize(siteA, siteB)).To(Equal(dsc.RouteDirect))
		Expect(dsc.Categorize(siteA, farPeer)).To(Equal(dsc.RouteBrokered))
	})

	It("never upgrades a LAN-only process with no public address", func() {
		other := o2nm.Name("@00000000:c0a80002:1f91")
		Expect(dsc.Categorize(lanA, other)).To(Equal(dsc.RouteBrokered))
	})
})

var _ = Describe("Resolve queue", func() {
	type fake struct {
		resolved  []string
		cancelled []string
	}

	var (
		f *fake
		q *dsc.ResolveQueue
	)

	BeforeEach(func() {
		f = &fake{}
		q = dsc.NewResolveQueue(&fakeResolver{
			onResolve: func(s string) { f.resolved = append(f.resolved, s) },
			onCancel:  func(s string) { f.cancelled = append(f.cancelled, s) },
		})
	})

	It("keeps at most one resolve in flight", func() {
		q.Push("one")
		q.Push("two")

		Expect(q.Poll(0)).To(Succeed())
		Expect(f.resolved).To(Equal([]string{"one"}))

		Expect(q.Poll(0.5)).To(Succeed())
		Expect(f.resolved).To(Equal([]string{"one"}))

		q.Done("one")
		Expect(q.Poll(0.6)).To(Succeed())
		Expect(f.resolved).To(Equal([]string{"one", "two"}))
	})

	It("cancels and requeues after the watchdog expires", func() {
		q.Push("slow")
		Expect(q.Poll(0)).To(Succeed())

		err := q.Poll(1.5)
		Expect(err).To(HaveOccurred())
		Expect(err.IsCode(dsc.ErrorResolveTimeout)).To(BeTrue())
		Expect(f.cancelled).To(Equal([]string{"slow"}))

		Expect(q.Poll(1.5)).To(Succeed())
		Expect(f.resolved).To(Equal([]string{"slow", "slow"}))
	})

	It("coalesces duplicate pushes", func() {
		q.Push("dup")
		q.Push("dup")
		Expect(q.Len()).To(Equal(1))
	})
})

type fakeResolver struct {
	onResolve func(string)
	onCancel  func(string)
}

func (f *fakeResolver) Resolve(instance string) { f.onResolve(instance) }
func (f *fakeResolver) Cancel(instance string)  { f.onCancel(instance) }
