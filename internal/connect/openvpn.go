package connect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"vanish/internal/model"
)

var ErrProfileMissing = errors.New("profile not found, run a profile sync first")

// Runner starts openvpn with a server's profile in the foreground.
type Runner struct {
	BinPath    string
	ProfileDir string
	CAFile     string
	Stdout     io.Writer
	Stderr     io.Writer
}

// Profile is the path of the profile file for s.
func (r *Runner) Profile(s model.Server) string {
	return filepath.Join(r.ProfileDir, s.ProfileName())
}

// Command builds the openvpn invocation for s. Extra arguments are passed
// through unchanged.
func (r *Runner) Command(ctx context.Context, s model.Server, extra []string) (*exec.Cmd, error) {
	profile := r.Profile(s)
	if _, err := os.Stat(profile); err != nil {
		return nil, fmt.Errorf("%s: %w", profile, ErrProfileMissing)
	}

	bin := r.BinPath
	if bin == "" {
		bin = "openvpn"
	}
	args := []string{"--config", profile}
	if r.CAFile != "" {
		args = append(args, "--ca", r.CAFile)
	}
	args = append(args, extra...)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	// let openvpn tear down the tunnel on interrupt
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 10 * time.Second
	return cmd, nil
}

// Run connects to s and blocks until openvpn exits. Cancelling ctx
// disconnects and is not reported as an error.
func (r *Runner) Run(ctx context.Context, s model.Server, extra []string) error {
	cmd, err := r.Command(ctx, s, extra)
	if err != nil {
		return err
	}

	log := slog.With("server", s.Handle(), "bin", cmd.Path)
	log.Info("openvpn_start", "args", cmd.Args[1:])
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			log.Info("openvpn_disconnected")
			return nil
		}
		return fmt.Errorf("run openvpn: %w", err)
	}
	return nil
}
