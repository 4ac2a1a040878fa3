package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"vanish/internal/model"
)

// TCPProber times a TCP handshake with the server. It works without the
// privileges ICMP may need.
type TCPProber struct {
	Port int
}

func (p *TCPProber) Probe(ctx context.Context, s model.Server) (time.Duration, error) {
	address := net.JoinHostPort(target(s), strconv.Itoa(p.port()))

	var d net.Dialer
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return 0, err
	}
	rtt := time.Since(start)
	conn.Close()
	return rtt, nil
}

func (p *TCPProber) port() int {
	if p.Port == 0 {
		return 443
	}
	return p.Port
}

func target(s model.Server) string {
	if s.IP != "" {
		return s.IP
	}
	return s.Hostname
}
