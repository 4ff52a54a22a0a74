package simulation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Params", func() {
	var (
		source map[string]any
		params Params
	)

	BeforeEach(func() {
		source = map[string]any{
			"rate":     2.5,
			"capacity": "10",
			"name":     "mm1",
			"verbose":  "true",
		}
		params = NewParams(source)
	})

	It("should not change when the source map changes", func() {
		source["rate"] = 4.0
		delete(source, "name")

		v, ok := params.Get("rate")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(2.5))
		Expect(params.Has("name")).To(BeTrue())
		Expect(params.Len()).To(Equal(4))
	})

	It("should list names in order", func() {
		Expect(params.Names()).To(Equal(
			[]string{"capacity", "name", "rate", "verbose"}))
	})

	It("should return a copy as a map", func() {
		m := params.AsMap()
		m["rate"] = 1.0

		Expect(params.Float64("rate")).To(Equal(2.5))
	})

	It("should decode weakly typed values", func() {
		Expect(params.Int("capacity")).To(Equal(10))
		Expect(params.Float64("capacity")).To(Equal(10.0))
		Expect(params.Text("name")).To(Equal("mm1"))
		Expect(params.Bool("verbose")).To(BeTrue())
	})

	It("should report missing parameters", func() {
		_, err := params.Float64("missing")

		Expect(err).To(MatchError(ErrParamNotFound))
	})

	It("should report undecodable parameters", func() {
		_, err := params.Int("name")

		Expect(err).To(HaveOccurred())
	})
})
