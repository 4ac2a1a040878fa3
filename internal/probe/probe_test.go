package probe_test

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"vanish/internal/model"
	"vanish/internal/probe"
)

type fakeProber struct {
	mu      sync.Mutex
	rtts    map[string]time.Duration
	block   map[string]bool
	active  int
	maxSeen int
}

func (f *fakeProber) Probe(ctx context.Context, s model.Server) (time.Duration, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.block[s.Hostname] {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	time.Sleep(5 * time.Millisecond)
	rtt, ok := f.rtts[s.Hostname]
	if !ok {
		return 0, probe.ErrNoReply
	}
	return rtt, nil
}

func servers(hosts ...string) []model.Server {
	var out []model.Server
	for _, h := range hosts {
		out = append(out, model.Server{CountryCode: "FR", Hostname: h, IP: "192.0.2.1"})
	}
	return out
}

var _ = Describe("Pool", func() {
	var prober *fakeProber

	BeforeEach(func() {
		prober = &fakeProber{
			rtts: map[string]time.Duration{
				"a.example": 10 * time.Millisecond,
				"b.example": 30 * time.Millisecond,
				"c.example": 20 * time.Millisecond,
			},
			block: map[string]bool{"slow.example": true},
		}
	})

	It("returns results in input order", func() {
		pool := probe.NewPool(prober, 4, time.Second, 0)
		results := pool.Run(context.Background(), servers("a.example", "b.example", "c.example"))

		Expect(results).To(HaveLen(3))
		Expect(results[0].Server.Hostname).To(Equal("a.example"))
		Expect(results[0].RTT).To(Equal(10 * time.Millisecond))
		Expect(results[1].RTT).To(Equal(30 * time.Millisecond))
		Expect(results[2].RTT).To(Equal(20 * time.Millisecond))
	})

	It("reports failures without stopping the batch", func() {
		pool := probe.NewPool(prober, 2, time.Second, 0)
		results := pool.Run(context.Background(), servers("a.example", "gone.example", "c.example"))

		Expect(results[0].OK()).To(BeTrue())
		Expect(errors.Is(results[1].Err, probe.ErrNoReply)).To(BeTrue())
		Expect(results[2].OK()).To(BeTrue())
	})

	It("times out unreachable hosts individually", func() {
		pool := probe.NewPool(prober, 2, 50*time.Millisecond, 0)

		start := time.Now()
		results := pool.Run(context.Background(), servers("slow.example", "a.example"))
		Expect(time.Since(start)).To(BeNumerically("<", time.Second))

		Expect(errors.Is(results[0].Err, context.DeadlineExceeded)).To(BeTrue())
		Expect(results[1].OK()).To(BeTrue())
	})

	It("bounds the number of concurrent probes", func() {
		for i := 0; i < 20; i++ {
			prober.rtts["h"+strconv.Itoa(i)] = time.Millisecond
		}
		var hosts []string
		for i := 0; i < 20; i++ {
			hosts = append(hosts, "h"+strconv.Itoa(i))
		}

		pool := probe.NewPool(prober, 3, time.Second, 0)
		results := pool.Run(context.Background(), servers(hosts...))
		Expect(results).To(HaveLen(20))
		Expect(prober.maxSeen).To(BeNumerically("<=", 3))
	})

	It("paces probe starts with the rate limiter", func() {
		pool := probe.NewPool(prober, 10, time.Second, 20)

		start := time.Now()
		pool.Run(context.Background(), servers("a.example", "b.example", "c.example"))
		Expect(time.Since(start)).To(BeNumerically(">=", 90*time.Millisecond))
	})

	It("marks servers it never started when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		pool := probe.NewPool(prober, 1, time.Second, 1)
		results := pool.Run(ctx, servers("a.example", "b.example"))
		Expect(results[1].Err).To(HaveOccurred())
	})
})

var _ = Describe("ParseRTT", func() {
	It("reads the time from linux ping output", func() {
		out := "64 bytes from 192.0.2.1: icmp_seq=1 ttl=57 time=23.4 ms\n"
		rtt, err := probe.ParseRTT(out)
		Expect(err).NotTo(HaveOccurred())
		Expect(rtt).To(Equal(23400 * time.Microsecond))
	})

	It("reads sub-millisecond times", func() {
		rtt, err := probe.ParseRTT("64 bytes from 127.0.0.1: icmp_seq=1 ttl=64 time<1 ms")
		Expect(err).NotTo(HaveOccurred())
		Expect(rtt).To(Equal(time.Millisecond))
	})

	It("fails when there is no reply", func() {
		_, err := probe.ParseRTT("1 packets transmitted, 0 received, 100% packet loss")
		Expect(errors.Is(err, probe.ErrNoReply)).To(BeTrue())
	})
})

var _ = Describe("TCPProber", func() {
	It("times a handshake with a listening port", func() {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer l.Close()
		go func() {
			for {
				c, err := l.Accept()
				if err != nil {
					return
				}
				c.Close()
			}
		}()

		port := l.Addr().(*net.TCPAddr).Port
		p := &probe.TCPProber{Port: port}
		rtt, err := p.Probe(context.Background(), model.Server{IP: "127.0.0.1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(rtt).To(BeNumerically(">", 0))
	})

	It("fails for a closed port", func() {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		port := l.Addr().(*net.TCPAddr).Port
		l.Close()

		p := &probe.TCPProber{Port: port}
		_, err = p.Probe(context.Background(), model.Server{IP: "127.0.0.1"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("New", func() {
	It("builds the configured prober", func() {
		p, err := probe.New(probe.MethodTCP, "", 1194)
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(&probe.TCPProber{Port: 1194}))

		p, err = probe.New(probe.MethodPing, "/bin/ping", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(&probe.PingProber{BinPath: "/bin/ping"}))
	})

	It("rejects unknown methods", func() {
		_, err := probe.New("carrier-pigeon", "", 0)
		Expect(err).To(MatchError(`unknown probe method "carrier-pigeon"`))
	})
})

var _ = Describe("Summarize", func() {
	It("aggregates reachable servers only", func() {
		results := []probe.Result{
			{RTT: 10 * time.Millisecond},
			{RTT: 30 * time.Millisecond},
			{RTT: 20 * time.Millisecond},
			{Err: probe.ErrNoReply},
		}
		sum := probe.Summarize(results)
		Expect(sum.Probed).To(Equal(4))
		Expect(sum.Reachable).To(Equal(3))
		Expect(sum.Min).To(Equal(10 * time.Millisecond))
		Expect(sum.Median).To(Equal(20 * time.Millisecond))
		Expect(sum.Mean).To(Equal(20 * time.Millisecond))
		Expect(sum.Max).To(Equal(30 * time.Millisecond))
	})

	It("handles no reachable servers", func() {
		sum := probe.Summarize([]probe.Result{{Err: probe.ErrNoReply}})
		Expect(sum).To(Equal(probe.Summary{Probed: 1}))
	})
})
