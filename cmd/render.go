package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"vanish/internal/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// renderer writes a value either as a table or in a structured format.
type renderer struct {
	out    io.Writer
	format string
}

func (r renderer) emit(v any, headers []string, rows [][]string) error {
	switch r.format {
	case "json":
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	_, err := fmt.Fprintln(r.out, t.Render())
	return err
}

// codes renders a code → name map, sorted by code.
func (r renderer) codes(kind string, m map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, m[k]})
	}
	return r.emit(m, []string{"Code", kind}, rows)
}

func (r renderer) cities(cities []string) error {
	rows := make([][]string, 0, len(cities))
	for _, c := range cities {
		rows = append(rows, []string{c})
	}
	return r.emit(cities, []string{"City"}, rows)
}

func (r renderer) servers(servers []model.Server) error {
	rows := make([][]string, 0, len(servers))
	for _, s := range servers {
		rows = append(rows, []string{location(s), s.Handle(), load(s.Capacity), s.IP})
	}
	return r.emit(servers, []string{"Location", "Handle", "Load", "IP"}, rows)
}

// probeRow is one line of a probe report.
type probeRow struct {
	Handle     string  `json:"handle" yaml:"handle"`
	Location   string  `json:"location" yaml:"location"`
	Capacity   int     `json:"capacity" yaml:"capacity"`
	Reachable  bool    `json:"reachable" yaml:"reachable"`
	RTTMillis  float64 `json:"rttMs,omitempty" yaml:"rttMs,omitempty"`
	GeoCountry string  `json:"geoCountry,omitempty" yaml:"geoCountry,omitempty"`
}

func (r renderer) probes(report []probeRow, withGeo bool) error {
	headers := []string{"Location", "Handle", "Load", "Response"}
	if withGeo {
		headers = append(headers, "GeoIP")
	}

	rows := make([][]string, 0, len(report))
	for _, p := range report {
		resp := "-"
		if p.Reachable {
			resp = strconv.FormatFloat(p.RTTMillis, 'f', 1, 64) + " ms"
		}
		row := []string{p.Location, p.Handle, load(p.Capacity), resp}
		if withGeo {
			row = append(row, p.GeoCountry)
		}
		rows = append(rows, row)
	}
	return r.emit(report, headers, rows)
}

// syncRow is one line of the status report.
type syncRow struct {
	Subject     string     `json:"subject" yaml:"subject"`
	LastSync    *time.Time `json:"lastSync" yaml:"lastSync"`
	Fingerprint string     `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

func (r renderer) syncStatus(report []syncRow) error {
	rows := make([][]string, 0, len(report))
	for _, s := range report {
		last := "never"
		if s.LastSync != nil {
			last = s.LastSync.Local().Format(time.DateTime)
		}
		fp := s.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		rows = append(rows, []string{s.Subject, last, fp})
	}
	return r.emit(report, []string{"Subject", "Last sync", "Fingerprint"}, rows)
}

func location(s model.Server) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.City, s.RegionAbbr, s.Country} {
		if p != "" && (len(parts) == 0 || parts[len(parts)-1] != p) {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func load(capacity int) string {
	return strconv.Itoa(capacity) + "%"
}
