package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"vanish/internal/model"
)

var rttPattern = regexp.MustCompile(`time[=<]([\d.]+) ?ms`)

var ErrNoReply = errors.New("no reply")

// PingProber sends a single ICMP echo using the system ping binary.
type PingProber struct {
	BinPath string
}

func (p *PingProber) Probe(ctx context.Context, s model.Server) (time.Duration, error) {
	bin := p.BinPath
	if bin == "" {
		bin = "ping"
	}

	waitSeconds := 1
	if deadline, ok := ctx.Deadline(); ok {
		if secs := int(time.Until(deadline).Seconds()); secs > waitSeconds {
			waitSeconds = secs
		}
	}

	cmd := exec.CommandContext(ctx, bin, "-c", "1", "-W", strconv.Itoa(waitSeconds), target(s))
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("%w: exit status %d", ErrNoReply, exitErr.ExitCode())
		}
		return 0, fmt.Errorf("run %s: %w", bin, err)
	}
	return ParseRTT(string(out))
}

// ParseRTT extracts the round-trip time from ping output.
func ParseRTT(output string) (time.Duration, error) {
	m := rttPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, fmt.Errorf("%w: no time in output", ErrNoReply)
	}
	ms, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse rtt %q: %w", m[1], err)
	}
	return time.Duration(math.Round(ms*1000)) * time.Microsecond, nil
}
