// Package sink appends probe results to a JSON Lines history file.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"vanish/internal/probe"
)

// Record is one line of the probe history.
type Record struct {
	Time       time.Time `json:"time"`
	Handle     string    `json:"handle"`
	Hostname   string    `json:"hostname"`
	IP         string    `json:"ip"`
	Capacity   int       `json:"capacity"`
	Reachable  bool      `json:"reachable"`
	RTTMillis  float64   `json:"rttMs,omitempty"`
	Error      string    `json:"error,omitempty"`
	GeoCountry string    `json:"geoCountry,omitempty"`
}

// NewRecord flattens a probe result taken at t.
func NewRecord(t time.Time, r probe.Result) Record {
	rec := Record{
		Time:      t.UTC(),
		Handle:    r.Server.Handle(),
		Hostname:  r.Server.Hostname,
		IP:        r.Server.IP,
		Capacity:  r.Server.Capacity,
		Reachable: r.OK(),
	}
	if r.OK() {
		rec.RTTMillis = float64(r.RTT) / float64(time.Millisecond)
	} else {
		rec.Error = r.Err.Error()
	}
	return rec
}

type JSONLWriter struct {
	file *os.File
	mu   sync.Mutex
}

func NewJSONL(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open probe history: %w", err)
	}
	return &JSONLWriter{file: f}, nil
}

func (w *JSONLWriter) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = w.file.Write(append(data, '\n'))
	return err
}

func (w *JSONLWriter) Close() error {
	return w.file.Close()
}
