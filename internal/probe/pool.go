package probe

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"vanish/internal/model"
)

// Pool probes many servers with bounded parallelism. Each probe gets its own
// timeout so one unreachable host cannot hold up the batch.
type Pool struct {
	Prober  Prober
	Workers int
	Timeout time.Duration
	Limiter *rate.Limiter // optional, paces probe starts
}

func NewPool(p Prober, workers int, timeout time.Duration, perSecond float64) *Pool {
	pool := &Pool{Prober: p, Workers: workers, Timeout: timeout}
	if perSecond > 0 {
		pool.Limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return pool
}

// Run probes every server and returns the results in input order. Failed
// probes are reported on their Result and never stop the others.
func (p *Pool) Run(ctx context.Context, servers []model.Server) []Result {
	results := make([]Result, len(servers))

	var g errgroup.Group
	g.SetLimit(p.workers())

	for i, s := range servers {
		results[i].Server = s
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				results[i].Err = err
				continue
			}
		}
		g.Go(func() error {
			results[i].RTT, results[i].Err = p.probeOne(ctx, s)
			return nil
		})
	}
	g.Wait()

	return results
}

func (p *Pool) probeOne(ctx context.Context, s model.Server) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	log := slog.With("server", s.Handle(), "target", target(s))
	start := time.Now()
	rtt, err := p.Prober.Probe(ctx, s)
	if err != nil {
		log.Debug("probe_failed", "duration", time.Since(start), "error", err)
		return 0, err
	}
	log.Debug("probe_ok", "rtt", rtt)
	return rtt, nil
}

func (p *Pool) workers() int {
	if p.Workers <= 0 {
		return DefaultWorkers
	}
	return p.Workers
}

func (p *Pool) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}
