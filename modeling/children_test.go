package modeling

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type leaf struct {
	Model
}

var _ = Describe("Children", func() {
	var (
		root       *leaf
		childA     *leaf
		childB     *leaf
		childAlias *leaf
	)

	BeforeEach(func() {
		s := buildSim(nil)

		var err error

		root, err = Construct[leaf](s, "Root", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		childA, err = Construct[leaf](s, "A", root, nil)
		Expect(err).NotTo(HaveOccurred())
		childB, err = Construct[leaf](s, "B", root, nil)
		Expect(err).NotTo(HaveOccurred())
		childAlias, err = Construct[leaf](s, "Alias", nil, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should keep children in insertion order", func() {
		Expect(root.Children().Names()).To(Equal([]string{"A", "B"}))
		Expect(root.Children().All()).To(Equal([]Module{childA, childB}))
		Expect(root.Children().Len()).To(Equal(2))
		Expect(root.Children().Has("A")).To(BeTrue())
		Expect(root.Children().Has("C")).To(BeFalse())
	})

	It("should detach a replaced child", func() {
		root.Children().Add("A", childAlias)

		Expect(childA.Parent()).To(BeNil())
		Expect(childAlias.Parent()).To(BeIdenticalTo(Module(root)))
		Expect(root.Children().Names()).To(Equal([]string{"A", "B"}))

		got, _ := root.Children().Get("A")
		Expect(got).To(BeIdenticalTo(childAlias))
	})

	It("should make the owner the parent of an added child", func() {
		Expect(childAlias.Parent()).To(BeNil())

		childB.Children().Add("Alias", childAlias)

		Expect(childAlias.Parent()).To(BeIdenticalTo(Module(childB)))
		got, found := childB.Children().Get("Alias")
		Expect(found).To(BeTrue())
		Expect(got).To(BeIdenticalTo(childAlias))
	})

	It("should detach a removed child", func() {
		Expect(root.Children().Remove("B")).To(BeTrue())
		Expect(root.Children().Remove("B")).To(BeFalse())

		Expect(childB.Parent()).To(BeNil())
		Expect(root.Children().Names()).To(Equal([]string{"A"}))
	})
})
