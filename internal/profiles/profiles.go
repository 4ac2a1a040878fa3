// Package profiles mirrors the upstream bundle of OpenVPN profiles into a
// local directory.
//
// A sync downloads the archive, compares its fingerprint with the one
// recorded for the previous sync and, only when it differs, extracts it into
// a staging directory that then replaces the live one. Profile files are
// renamed to "{cc}-{hostname stem}.ovpn" so they can be addressed by server
// handle.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"vanish/internal/fingerprint"
)

// CacheKey is the cache entry holding the last sync Record.
const CacheKey = "ovpnconfigs"

const DefaultVendor = "ipvanish"

// DefaultMaxExtractBytes caps the uncompressed size of an archive.
const DefaultMaxExtractBytes = 256 * 1024 * 1024

// ErrEmptyArchive is returned when the archive holds no profiles; the live
// directory is kept.
var ErrEmptyArchive = errors.New("archive contains no profiles")

// ErrArchiveTooLarge is returned when extraction would exceed MaxExtractBytes.
var ErrArchiveTooLarge = errors.New("archive exceeds extraction limit")

// Record is the bookkeeping stored after a successful sync.
type Record struct {
	Timestamp   int64  `json:"timestamp"`
	Fingerprint string `json:"fingerprint"`
}

func (r Record) Time() time.Time { return time.Unix(r.Timestamp, 0) }

// Result describes the outcome of Update.
type Result struct {
	Changed     bool
	Profiles    int
	Fingerprint string
}

type downloader interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

type bookkeeper interface {
	Get(key string, v any) error
	Save(key string, v any) error
}

type Syncer struct {
	Fetcher downloader
	Cache   bookkeeper
	URL     string
	Dir     string
	Vendor  string
	Now     func() time.Time

	MaxExtractBytes int64 // default DefaultMaxExtractBytes
}

func New(f downloader, c bookkeeper, url, dir, vendor string) *Syncer {
	if vendor == "" {
		vendor = DefaultVendor
	}
	return &Syncer{Fetcher: f, Cache: c, URL: url, Dir: dir, Vendor: vendor, Now: time.Now}
}

// Update synchronizes the live profile directory with the remote archive.
// The live directory is either fully replaced or left as it was.
func (s *Syncer) Update(ctx context.Context) (Result, error) {
	log := slog.With("url", s.URL, "dir", s.Dir)

	work, err := os.MkdirTemp("", "vanish-profiles")
	if err != nil {
		return Result{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	archive := filepath.Join(work, "configs.zip")
	if err := s.download(ctx, archive); err != nil {
		log.Error("profiles_fetch_failed", "error", err)
		return Result{}, err
	}

	sum, err := fingerprint.File(archive)
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint archive: %w", err)
	}

	if prev, err := s.LastSync(); err == nil && prev.Fingerprint == sum && s.liveExists() {
		log.Info("profiles_unchanged", "fingerprint", sum)
		return Result{Changed: false, Fingerprint: sum}, nil
	}

	parent := filepath.Dir(s.Dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return Result{}, fmt.Errorf("create profile parent dir: %w", err)
	}
	// staging lives next to the live dir so the swap is a rename
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(s.Dir)+"-staging-")
	if err != nil {
		return Result{}, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	n, err := extract(archive, staging, s.Vendor, s.maxExtract())
	if err != nil {
		log.Error("profiles_extract_failed", "error", err)
		return Result{}, err
	}
	if n == 0 {
		return Result{}, ErrEmptyArchive
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return Result{}, fmt.Errorf("chmod staging dir: %w", err)
	}

	if err := replaceDir(staging, s.Dir); err != nil {
		return Result{}, err
	}

	rec := Record{Timestamp: s.now().Unix(), Fingerprint: sum}
	if err := s.Cache.Save(CacheKey, rec); err != nil {
		return Result{}, fmt.Errorf("record profile sync: %w", err)
	}

	log.Info("profiles_sync_complete", "profiles", n, "fingerprint", sum)
	return Result{Changed: true, Profiles: n, Fingerprint: sum}, nil
}

// LastSync returns the record of the last successful Update.
func (s *Syncer) LastSync() (Record, error) {
	var rec Record
	if err := s.Cache.Get(CacheKey, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Syncer) download(ctx context.Context, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	if _, err := s.Fetcher.Download(ctx, s.URL, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Syncer) liveExists() bool {
	fi, err := os.Stat(s.Dir)
	return err == nil && fi.IsDir()
}

func (s *Syncer) maxExtract() int64 {
	if s.MaxExtractBytes <= 0 {
		return DefaultMaxExtractBytes
	}
	return s.MaxExtractBytes
}

func (s *Syncer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
