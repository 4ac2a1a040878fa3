package geoip_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"vanish/internal/geoip"
)

var _ = Describe("Database", func() {
	It("resolves nothing when no database is configured", func() {
		var db *geoip.Database
		Expect(db.Country("81.2.69.142")).To(BeEmpty())
		Expect(db.Close()).To(Succeed())
	})

	It("fails to open a missing database", func() {
		_, err := geoip.Open(filepath.Join(os.TempDir(), "no-such.mmdb"))
		Expect(err).To(MatchError(ContainSubstring("open geoip database")))
	})

	It("fails to open a file that is not a database", func() {
		f, err := os.CreateTemp("", "geoip-*.mmdb")
		Expect(err).NotTo(HaveOccurred())
		defer os.Remove(f.Name())
		f.WriteString("not a maxmind database")
		f.Close()

		_, err = geoip.Open(f.Name())
		Expect(err).To(HaveOccurred())
	})
})
