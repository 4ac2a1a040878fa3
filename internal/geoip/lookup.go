// Package geoip resolves server addresses to countries from a local MaxMind
// database, to cross-check the locations the status document advertises.
package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Database wraps a GeoLite2/GeoIP2 country database. A nil *Database is
// usable and resolves nothing.
type Database struct {
	reader *geoip2.Reader
}

func Open(path string) (*Database, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &Database{reader: r}, nil
}

// Country returns the ISO code for ip, or "" when it cannot be resolved.
// GB is reported as UK to match the catalog.
func (d *Database) Country(ip string) string {
	if d == nil || d.reader == nil {
		return ""
	}

	addr := net.ParseIP(ip)
	if addr == nil {
		return ""
	}

	record, err := d.reader.Country(addr)
	if err != nil {
		return ""
	}
	if record.Country.IsoCode == "GB" {
		return "UK"
	}
	return record.Country.IsoCode
}

func (d *Database) Close() error {
	if d == nil || d.reader == nil {
		return nil
	}
	return d.reader.Close()
}
