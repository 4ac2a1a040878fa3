package main

import (
	"flag"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"vanish/internal/catalog"
)

var _ = Describe("parseArgs", func() {
	It("defaults list to servers in table format", func() {
		inv, err := parseArgs([]string{"list"})
		Expect(err).NotTo(HaveOccurred())
		Expect(inv.subject).To(Equal("servers"))
		Expect(inv.format).To(Equal("table"))
		Expect(inv.filter.Empty()).To(BeTrue())
	})

	It("accepts flags after the subject and repeated filters", func() {
		inv, err := parseArgs([]string{"list", "cities", "--continent", "EU", "--country=FR", "--country", "UK", "--format", "json"})
		Expect(err).NotTo(HaveOccurred())
		Expect(inv.subject).To(Equal("cities"))
		Expect(inv.format).To(Equal("json"))
		Expect(inv.filter).To(Equal(catalog.Filter{
			Continents: []string{"EU"},
			Countries:  []string{"FR", "UK"},
		}))
	})

	It("passes everything after -- to openvpn", func() {
		inv, err := parseArgs([]string{"connect", "--server", "uk-lon-a01", "--", "--verb", "4"})
		Expect(err).NotTo(HaveOccurred())
		Expect(inv.server).To(Equal("uk-lon-a01"))
		Expect(inv.extra).To(Equal([]string{"--verb", "4"}))
	})

	It("keeps commas inside filter values", func() {
		inv, err := parseArgs([]string{"list", "servers", "--city", "Washington, D.C.", "--city", "Paris"})
		Expect(err).NotTo(HaveOccurred())
		Expect(inv.filter.Cities).To(Equal([]string{"Washington, D.C.", "Paris"}))
	})

	It("defaults sync to all", func() {
		inv, err := parseArgs([]string{"sync"})
		Expect(err).NotTo(HaveOccurred())
		Expect(inv.subject).To(Equal("all"))
	})

	It("reports help", func() {
		_, err := parseArgs([]string{"list", "-h"})
		Expect(err).To(MatchError(flag.ErrHelp))
	})

	table.DescribeTable("usage errors",
		func(args []string, msg string) {
			_, err := parseArgs(args)
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		table.Entry("no command", []string{}, "missing command"),
		table.Entry("unknown command", []string{"disconnect"}, "unknown command"),
		table.Entry("unknown list subject", []string{"list", "planets"}, "unknown subject"),
		table.Entry("unknown sync subject", []string{"sync", "everything"}, "unknown subject"),
		table.Entry("two subjects", []string{"list", "cities", "servers"}, "unexpected argument"),
		table.Entry("unknown format", []string{"list", "--format", "xml"}, "unknown format"),
		table.Entry("flag of another command", []string{"sync", "--country", "FR"}, "flag provided but not defined"),
		table.Entry("stray argument", []string{"probe", "fast"}, "unexpected argument"),
		table.Entry("server with filters", []string{"connect", "--server", "fr-par-a01", "--country", "FR"}, "cannot be combined"),
	)
})
