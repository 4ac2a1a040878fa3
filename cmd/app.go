package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"vanish/internal/cache"
	"vanish/internal/catalog"
	"vanish/internal/config"
	"vanish/internal/connect"
	"vanish/internal/fetch"
	"vanish/internal/geoip"
	"vanish/internal/metrics"
	"vanish/internal/probe"
	"vanish/internal/profiles"
	"vanish/internal/sink"
	"vanish/internal/status"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	out      renderer
	stdout   io.Writer
	stderr   io.Writer
	cache    *cache.Cache
	status   *status.Syncer
	profiles *profiles.Syncer
	metrics  *metrics.Metrics
}

func newApp(cfg *config.Config, format string, stdout, stderr io.Writer) (*app, error) {
	client, err := fetch.New(fetch.Options{
		Timeout:  cfg.FetchTimeout,
		MaxBytes: cfg.MaxDownloadBytes,
		CAFile:   cfg.CAFile,
	})
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		out:      renderer{out: stdout, format: format},
		stdout:   stdout,
		stderr:   stderr,
		cache:    c,
		status:   status.New(client, c, cfg.StatusURL, cfg.SnapshotPath),
		profiles: profiles.New(client, c, cfg.ProfilesURL, cfg.ProfileDir, cfg.ProfileVendor),
		metrics:  metrics.New(),
	}
	if t, err := a.status.LastSync(); err == nil {
		a.metrics.SyncedAt("status", t)
	}
	if rec, err := a.profiles.LastSync(); err == nil {
		a.metrics.SyncedAt("profiles", rec.Time())
	}
	return a, nil
}

func (a *app) execute(ctx context.Context, inv invocation) error {
	var err error
	switch inv.command {
	case "list":
		err = a.list(ctx, inv)
	case "connect":
		err = a.connect(ctx, inv)
	case "sync":
		err = a.sync(ctx, inv.subject)
	case "probe":
		err = a.probe(ctx, inv)
	case "status":
		err = a.syncStatus()
	default:
		err = fmt.Errorf("unknown command %q", inv.command)
	}
	if err != nil {
		return err
	}
	return a.writeMetrics()
}

func (a *app) writeMetrics() error {
	if a.cfg.MetricsTextfile == "" {
		return nil
	}
	return a.metrics.WriteToTextfile(a.cfg.MetricsTextfile)
}

func (a *app) sync(ctx context.Context, subject string) error {
	if subject == "status" || subject == "all" {
		if err := a.syncServers(ctx); err != nil {
			return err
		}
	}
	if subject == "profiles" || subject == "all" {
		res, err := a.profiles.Update(ctx)
		if err != nil {
			return fmt.Errorf("sync profiles: %w", err)
		}
		if res.Changed {
			a.metrics.ProfilesSynced(res.Profiles)
			fmt.Fprintf(a.stdout, "profiles: %d files updated\n", res.Profiles)
		} else {
			fmt.Fprintln(a.stdout, "profiles: unchanged")
		}
	}
	return nil
}

func (a *app) syncServers(ctx context.Context) error {
	n, err := a.status.Update(ctx)
	if err != nil {
		return fmt.Errorf("sync status: %w", err)
	}
	a.metrics.StatusSynced(n)
	fmt.Fprintf(a.stdout, "status: %d servers\n", n)
	return nil
}

// catalog loads the snapshot, refreshing it first when it is older than
// STATUS_MAX_AGE.
func (a *app) catalog(ctx context.Context) (*catalog.Catalog, error) {
	if a.cfg.StatusMaxAge > 0 && a.status.Stale(a.cfg.StatusMaxAge) {
		slog.Info("status_stale", "max_age", a.cfg.StatusMaxAge)
		n, err := a.status.Update(ctx)
		if err != nil {
			return nil, fmt.Errorf("refresh status: %w", err)
		}
		a.metrics.StatusSynced(n)
	}

	cat, err := catalog.Load(a.cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}
	a.metrics.CatalogLoaded(cat.Len())
	return cat, nil
}

func (a *app) list(ctx context.Context, inv invocation) error {
	cat, err := a.catalog(ctx)
	if err != nil {
		return err
	}

	f := inv.filter
	switch inv.subject {
	case "continents":
		return a.out.codes("Continent", cat.Continents())
	case "countries":
		return a.out.codes("Country", cat.Countries(f.Continents))
	case "regions":
		return a.out.codes("Region", cat.Regions(f.Continents, f.Countries))
	case "cities":
		return a.out.cities(cat.Cities(f.Continents, f.Countries, f.Regions))
	default:
		return a.out.servers(cat.Servers(f))
	}
}

func (a *app) pool() (*probe.Pool, error) {
	p, err := probe.New(a.cfg.ProbeMethod, a.cfg.PingPath, a.cfg.ProbePort)
	if err != nil {
		return nil, err
	}
	return probe.NewPool(p, a.cfg.ProbeWorkers, a.cfg.ProbeTimeout, a.cfg.ProbeRate), nil
}

func (a *app) probe(ctx context.Context, inv invocation) error {
	cat, err := a.catalog(ctx)
	if err != nil {
		return err
	}
	pool, err := a.pool()
	if err != nil {
		return err
	}

	var geo *geoip.Database
	if a.cfg.GeoIPPath != "" {
		if geo, err = geoip.Open(a.cfg.GeoIPPath); err != nil {
			return err
		}
		defer geo.Close()
	}

	start := time.Now()
	results := pool.Run(ctx, cat.Servers(inv.filter))
	if err := ctx.Err(); err != nil {
		return err
	}
	sortResults(results)
	a.metrics.Probed(results)

	if err := a.recordHistory(start, results, geo); err != nil {
		return err
	}

	report := make([]probeRow, 0, len(results))
	for _, r := range results {
		row := probeRow{
			Handle:     r.Server.Handle(),
			Location:   location(r.Server),
			Capacity:   r.Server.Capacity,
			Reachable:  r.OK(),
			GeoCountry: geo.Country(r.Server.IP),
		}
		if r.OK() {
			row.RTTMillis = float64(r.RTT) / float64(time.Millisecond)
		}
		report = append(report, row)
	}
	if err := a.out.probes(report, geo != nil); err != nil {
		return err
	}

	sum := probe.Summarize(results)
	slog.Info("probe_complete",
		"probed", sum.Probed, "reachable", sum.Reachable,
		"min", sum.Min, "median", sum.Median, "mean", sum.Mean, "max", sum.Max,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (a *app) recordHistory(at time.Time, results []probe.Result, geo *geoip.Database) error {
	if a.cfg.ProbeHistoryPath == "" {
		return nil
	}
	w, err := sink.NewJSONL(a.cfg.ProbeHistoryPath)
	if err != nil {
		return err
	}
	for _, r := range results {
		rec := sink.NewRecord(at, r)
		rec.GeoCountry = geo.Country(r.Server.IP)
		if err := w.Write(rec); err != nil {
			w.Close()
			return fmt.Errorf("write probe history: %w", err)
		}
	}
	return w.Close()
}

// sortResults puts reachable servers first, fastest first, and the rest by
// load.
func sortResults(results []probe.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.OK() != b.OK() {
			return a.OK()
		}
		if a.OK() {
			return a.RTT < b.RTT
		}
		return a.Server.Capacity < b.Server.Capacity
	})
}

func (a *app) connect(ctx context.Context, inv invocation) error {
	cat, err := a.catalog(ctx)
	if err != nil {
		return err
	}

	var sel connect.Selection
	if inv.server != "" {
		if sel.Server, err = cat.Lookup(inv.server); err != nil {
			return err
		}
	} else {
		pool, err := a.pool()
		if err != nil {
			return err
		}
		if sel, err = connect.Select(ctx, cat.Servers(inv.filter), pool); err != nil {
			return err
		}
	}

	runner := &connect.Runner{
		BinPath:    a.cfg.OpenVPNPath,
		ProfileDir: a.cfg.ProfileDir,
		CAFile:     a.cfg.OpenVPNCA,
		Stdout:     a.stdout,
		Stderr:     a.stderr,
	}
	if _, err := os.Stat(runner.Profile(sel.Server)); errors.Is(err, os.ErrNotExist) {
		slog.Info("profiles_missing", "dir", a.cfg.ProfileDir)
		if err := a.sync(ctx, "profiles"); err != nil {
			return err
		}
	}

	if sel.RTT > 0 {
		fmt.Fprintf(a.stderr, "connecting to %s (%s, %s load, %s)\n",
			sel.Server.Handle(), location(sel.Server), load(sel.Server.Capacity), sel.RTT.Round(time.Millisecond/10))
	} else {
		fmt.Fprintf(a.stderr, "connecting to %s (%s, %s load)\n",
			sel.Server.Handle(), location(sel.Server), load(sel.Server.Capacity))
	}
	return runner.Run(ctx, sel.Server, inv.extra)
}

func (a *app) syncStatus() error {
	report := []syncRow{{Subject: "status"}, {Subject: "profiles"}}

	recorded := make(map[string]bool)
	for _, key := range a.cache.Keys() {
		recorded[key] = true
	}

	if recorded[status.CacheKey] {
		t, err := a.status.LastSync()
		if err != nil {
			return err
		}
		report[0].LastSync = &t
	}

	if recorded[profiles.CacheKey] {
		rec, err := a.profiles.LastSync()
		if err != nil {
			return err
		}
		pt := rec.Time()
		report[1].LastSync = &pt
		report[1].Fingerprint = rec.Fingerprint
	}

	return a.out.syncStatus(report)
}

// hint adds a next step to errors the user can fix.
func hint(err error) string {
	switch {
	case errors.Is(err, catalog.ErrNoSnapshot):
		return "run `vanish sync status` first"
	case errors.Is(err, connect.ErrProfileMissing):
		return "run `vanish sync profiles` first"
	}
	return ""
}
