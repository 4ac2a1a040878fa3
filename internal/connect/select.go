// Package connect picks a server and hands its profile to openvpn.
package connect

import (
	"context"
	"sort"
	"time"

	"vanish/internal/catalog"
	"vanish/internal/model"
	"vanish/internal/probe"
)

// Candidates is how many of the least loaded servers are probed.
const Candidates = 20

type prober interface {
	Run(ctx context.Context, servers []model.Server) []probe.Result
}

// Selection is the server chosen by Select. RTT is zero when no candidate
// answered and the least loaded server was taken instead.
type Selection struct {
	Server model.Server
	RTT    time.Duration
}

// Select probes the least loaded servers and returns the fastest one.
func Select(ctx context.Context, servers []model.Server, p prober) (Selection, error) {
	if len(servers) == 0 {
		return Selection{}, catalog.ErrNoMatchingServers
	}

	candidates := append([]model.Server(nil), servers...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Capacity < candidates[j].Capacity
	})
	if len(candidates) > Candidates {
		candidates = candidates[:Candidates]
	}

	best := -1
	results := p.Run(ctx, candidates)
	for i, r := range results {
		if !r.OK() {
			continue
		}
		if best < 0 || r.RTT < results[best].RTT {
			best = i
		}
	}
	if best < 0 {
		return Selection{Server: candidates[0]}, nil
	}
	return Selection{Server: results[best].Server, RTT: results[best].RTT}, nil
}
