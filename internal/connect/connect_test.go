package connect_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"vanish/internal/catalog"
	"vanish/internal/connect"
	"vanish/internal/model"
	"vanish/internal/probe"
)

type fakePool struct {
	rtts   map[string]time.Duration
	probed []model.Server
}

func (f *fakePool) Run(ctx context.Context, servers []model.Server) []probe.Result {
	f.probed = servers
	results := make([]probe.Result, len(servers))
	for i, s := range servers {
		results[i].Server = s
		rtt, ok := f.rtts[s.Hostname]
		if !ok {
			results[i].Err = probe.ErrNoReply
			continue
		}
		results[i].RTT = rtt
	}
	return results
}

func server(host string, capacity int) model.Server {
	return model.Server{CountryCode: "FR", Hostname: host + ".ipvanish.com", Capacity: capacity}
}

var _ = Describe("Select", func() {
	It("returns ErrNoMatchingServers for an empty candidate list", func() {
		_, err := connect.Select(context.Background(), nil, &fakePool{})
		Expect(errors.Is(err, catalog.ErrNoMatchingServers)).To(BeTrue())
	})

	It("picks the fastest of the least loaded servers", func() {
		pool := &fakePool{rtts: map[string]time.Duration{
			"par-a01.ipvanish.com": 30 * time.Millisecond,
			"par-a02.ipvanish.com": 12 * time.Millisecond,
			"par-a03.ipvanish.com": 25 * time.Millisecond,
		}}
		servers := []model.Server{server("par-a01", 50), server("par-a02", 80), server("par-a03", 10)}

		sel, err := connect.Select(context.Background(), servers, pool)
		Expect(err).NotTo(HaveOccurred())
		Expect(sel.Server.Hostname).To(Equal("par-a02.ipvanish.com"))
		Expect(sel.RTT).To(Equal(12 * time.Millisecond))
	})

	It("probes only the least loaded candidates", func() {
		var servers []model.Server
		for i := 0; i < 30; i++ {
			servers = append(servers, server(fmt.Sprintf("par-a%02d", i), 100-i))
		}

		pool := &fakePool{rtts: map[string]time.Duration{}}
		_, err := connect.Select(context.Background(), servers, pool)
		Expect(err).NotTo(HaveOccurred())
		Expect(pool.probed).To(HaveLen(connect.Candidates))
		Expect(pool.probed[0].Capacity).To(Equal(71))
		Expect(pool.probed[19].Capacity).To(Equal(90))
	})

	It("falls back to the least loaded server when nothing answers", func() {
		servers := []model.Server{server("par-a01", 50), server("par-a02", 20)}

		sel, err := connect.Select(context.Background(), servers, &fakePool{})
		Expect(err).NotTo(HaveOccurred())
		Expect(sel.Server.Hostname).To(Equal("par-a02.ipvanish.com"))
		Expect(sel.RTT).To(BeZero())
	})

	It("does not reorder the caller's slice", func() {
		servers := []model.Server{server("par-a01", 50), server("par-a02", 20)}
		_, err := connect.Select(context.Background(), servers, &fakePool{})
		Expect(err).NotTo(HaveOccurred())
		Expect(servers[0].Hostname).To(Equal("par-a01.ipvanish.com"))
	})
})

var _ = Describe("Runner", func() {
	var (
		dir    string
		runner *connect.Runner
		srv    model.Server
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "connect")
		Expect(err).NotTo(HaveOccurred())
		runner = &connect.Runner{BinPath: "openvpn", ProfileDir: dir, CAFile: filepath.Join(dir, "ca.ipvanish.com.crt")}
		srv = model.Server{CountryCode: "UK", Hostname: "lon-a01.ipvanish.com"}
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("builds the openvpn command for the server profile", func() {
		Expect(os.WriteFile(filepath.Join(dir, "uk-lon-a01.ovpn"), nil, 0o644)).To(Succeed())

		cmd, err := runner.Command(context.Background(), srv, []string{"--verb", "3"})
		Expect(err).NotTo(HaveOccurred())
		Expect(cmd.Args).To(Equal([]string{
			"openvpn",
			"--config", filepath.Join(dir, "uk-lon-a01.ovpn"),
			"--ca", filepath.Join(dir, "ca.ipvanish.com.crt"),
			"--verb", "3",
		}))
	})

	It("fails when the profile is missing", func() {
		_, err := runner.Command(context.Background(), srv, nil)
		Expect(errors.Is(err, connect.ErrProfileMissing)).To(BeTrue())
	})

	Context("running openvpn", func() {
		var out bytes.Buffer

		fakeBin := func(body string) string {
			path := filepath.Join(dir, "fake-openvpn")
			Expect(os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)).To(Succeed())
			return path
		}

		BeforeEach(func() {
			if runtime.GOOS == "windows" {
				Skip("needs a posix shell")
			}
			out.Reset()
			runner.Stdout = &out
			Expect(os.WriteFile(filepath.Join(dir, "uk-lon-a01.ovpn"), nil, 0o644)).To(Succeed())
		})

		It("passes the profile and streams output", func() {
			runner.BinPath = fakeBin(`echo "$@"`)

			Expect(runner.Run(context.Background(), srv, []string{"--verb", "3"})).To(Succeed())
			Expect(out.String()).To(ContainSubstring("--config " + filepath.Join(dir, "uk-lon-a01.ovpn")))
			Expect(out.String()).To(ContainSubstring("--verb 3"))
		})

		It("reports a failing exit", func() {
			runner.BinPath = fakeBin("exit 3")

			err := runner.Run(context.Background(), srv, nil)
			Expect(err).To(MatchError(ContainSubstring("run openvpn")))
		})

		It("treats cancellation as a disconnect", func() {
			runner.BinPath = fakeBin("exec sleep 5")

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			start := time.Now()
			Expect(runner.Run(ctx, srv, nil)).To(Succeed())
			Expect(time.Since(start)).To(BeNumerically("<", 4*time.Second))
		})
	})
})
