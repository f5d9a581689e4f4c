/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
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

package duration_test

import (
	"encoding/json"

	"github.com/pelletier/go-toml"
	libdur "github.com/sabouaram/o2/duration"
	"gopkg.in/yaml.v3"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type StructExample struct {
	Value libdur.Duration `json:"value" yaml:"value" toml:"value"`
}

var valueExample = StructExample{Value: libdur.Days(5) + libdur.Hours(23) + libdur.Minutes(15) + libdur.Seconds(13)}

func jsonDuration() []byte {
	return []byte(`{"value":"5d23h15m13s"}`)
}

func yamlDuration() []byte {
	return []byte(`value: 5d23h15m13s
`)
}

func tomlDuration() []byte {
	return []byte(`value = "5d23h15m13s"
`)
}

var _ = Describe("duration encoding", func() {
	Context("decoding a value from json, yaml, toml", func() {
		It("decodes the json form", func() {
			var s StructExample
			Expect(json.Unmarshal(jsonDuration(), &s)).To(Succeed())
			Expect(s.Value).To(Equal(valueExample.Value))
		})

		It("decodes the yaml form", func() {
			var s StructExample
			Expect(yaml.Unmarshal(yamlDuration(), &s)).To(Succeed())
			Expect(s.Value).To(Equal(valueExample.Value))
		})

		It("decodes the toml form", func() {
			var s StructExample
			Expect(toml.Unmarshal(tomlDuration(), &s)).To(Succeed())
			Expect(s.Value).To(Equal(valueExample.Value))
		})
	})

	Context("encoding a value to json, yaml, toml", func() {
		It("round-trips through the json form", func() {
			b, err := json.Marshal(valueExample)
			Expect(err).ToNot(HaveOccurred())

			var s StructExample
			Expect(json.Unmarshal(b, &s)).To(Succeed())
			Expect(s.Value).To(Equal(valueExample.Value))
		})

		It("round-trips through the yaml form", func() {
			b, err := yaml.Marshal(valueExample)
			Expect(err).ToNot(HaveOccurred())

			var s StructExample
			Expect(yaml.Unmarshal(b, &s)).To(Succeed())
			Expect(s.Value).To(Equal(valueExample.Value))
		})

		It("round-trips through the toml form", func() {
			b, err := toml.Marshal(valueExample)
			Expect(err).ToNot(HaveOccurred())

			var s StructExample
			Expect(toml.Unmarshal(b, &s)).To(Succeed())
			Expect(s.Value).To(Equal(valueExample.Value))
		})
	})
})
