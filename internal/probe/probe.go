// Package probe measures round-trip times to servers.
package probe

import (
	"context"
	"fmt"
	"time"

	"vanish/internal/model"
)

const (
	MethodPing = "ping"
	MethodTCP  = "tcp"

	DefaultTimeout = time.Second
	DefaultWorkers = 10
)

// Prober measures the round-trip time to a single server.
type Prober interface {
	Probe(ctx context.Context, s model.Server) (time.Duration, error)
}

// Result is the outcome of probing one server. Err is set when the server
// could not be reached; RTT is meaningful only when Err is nil.
type Result struct {
	Server model.Server
	RTT    time.Duration
	Err    error
}

func (r Result) OK() bool { return r.Err == nil }

// New returns the prober for method.
func New(method, pingPath string, port int) (Prober, error) {
	switch method {
	case MethodPing, "":
		return &PingProber{BinPath: pingPath}, nil
	case MethodTCP:
		return &TCPProber{Port: port}, nil
	default:
		return nil, fmt.Errorf("unknown probe method %q", method)
	}
}
