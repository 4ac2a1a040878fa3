// Package status keeps the local server snapshot in step with the upstream
// status document.
package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"vanish/internal/model"
)

// CacheKey is the cache entry holding the Unix time of the last sync.
const CacheKey = "geojson"

// ParseError means the status document does not have the expected shape.
// Index is the offending record, or -1 for the document itself.
type ParseError struct {
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("parse status document: %v", e.Err)
	}
	return fmt.Sprintf("parse status document: record %d: %v", e.Index, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type fetcher interface {
	Bytes(ctx context.Context, url string) ([]byte, error)
}

type bookkeeper interface {
	Get(key string, v any) error
	Save(key string, v any) error
}

type Syncer struct {
	Fetcher      fetcher
	Cache        bookkeeper
	URL          string
	SnapshotPath string
	Now          func() time.Time
}

func New(f fetcher, c bookkeeper, url, snapshotPath string) *Syncer {
	return &Syncer{Fetcher: f, Cache: c, URL: url, SnapshotPath: snapshotPath, Now: time.Now}
}

// Update fetches the status document and replaces the snapshot. The snapshot
// is left untouched on any error. It returns the number of servers written.
func (s *Syncer) Update(ctx context.Context) (int, error) {
	log := slog.With("url", s.URL, "snapshot", s.SnapshotPath)

	data, err := s.Fetcher.Bytes(ctx, s.URL)
	if err != nil {
		log.Error("status_fetch_failed", "error", err)
		return 0, err
	}

	servers, err := Parse(data)
	if err != nil {
		log.Error("status_parse_failed", "error", err)
		return 0, err
	}

	out, err := json.MarshalIndent(servers, "", "    ")
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.SnapshotPath), 0o755); err != nil {
		return 0, fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := renameio.WriteFile(s.SnapshotPath, out, 0o644); err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}

	if err := s.Cache.Save(CacheKey, s.now().Unix()); err != nil {
		return 0, fmt.Errorf("record status sync: %w", err)
	}

	log.Info("status_sync_complete", "servers", len(servers))
	return len(servers), nil
}

// featureCollection is the GeoJSON envelope some upstream responses use
// around the feature array.
type featureCollection struct {
	Features []model.Feature `json:"features"`
}

// Parse converts a status document into servers. The document is either a
// bare feature array or a GeoJSON FeatureCollection. An empty document is an
// error so that a truncated upstream response never replaces a good snapshot.
func Parse(data []byte) ([]model.Server, error) {
	features, err := decodeFeatures(data)
	if err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}
	if len(features) == 0 {
		return nil, &ParseError{Index: -1, Err: errors.New("no servers")}
	}

	servers := make([]model.Server, 0, len(features))
	for i, f := range features {
		srv, err := model.FromRaw(f.Properties)
		if err != nil {
			return nil, &ParseError{Index: i, Err: err}
		}
		servers = append(servers, srv)
	}
	return servers, nil
}

func decodeFeatures(data []byte) ([]model.Feature, error) {
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		var fc featureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, err
		}
		return fc.Features, nil
	}

	var features []model.Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, err
	}
	return features, nil
}

// LastSync returns the time of the last successful Update.
func (s *Syncer) LastSync() (time.Time, error) {
	var ts int64
	if err := s.Cache.Get(CacheKey, &ts); err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}

// Stale reports whether the snapshot should be refreshed: it is missing,
// was never recorded, or is older than maxAge. A non-positive maxAge only
// considers the missing cases.
func (s *Syncer) Stale(maxAge time.Duration) bool {
	if _, err := os.Stat(s.SnapshotPath); err != nil {
		return true
	}
	last, err := s.LastSync()
	if err != nil {
		return true
	}
	if maxAge <= 0 {
		return false
	}
	return s.now().Sub(last) > maxAge
}

func (s *Syncer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
