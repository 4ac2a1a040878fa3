package model

import "strings"

// Server is one VPN endpoint as stored in the local status snapshot.
type Server struct {
	// --- Location ---
	Continent     string `json:"continent" yaml:"continent"`
	ContinentCode string `json:"continentCode" yaml:"continentCode"`
	Country       string `json:"country" yaml:"country"`
	CountryCode   string `json:"countryCode" yaml:"countryCode"` // normalized at ingestion, see NormalizeCountryCode
	Region        string `json:"region" yaml:"region"`
	RegionCode    string `json:"regionCode" yaml:"regionCode"`
	RegionAbbr    string `json:"regionAbbr" yaml:"regionAbbr"`
	City          string `json:"city" yaml:"city"`

	// --- Identity ---
	Hostname string `json:"hostname" yaml:"hostname"`
	IP       string `json:"ip" yaml:"ip"`
	Title    string `json:"title" yaml:"title"`

	// --- Load ---
	Capacity int `json:"capacity" yaml:"capacity"` // percent, 0..100
}

// HostnameStem is the hostname without its domain suffix.
func (s Server) HostnameStem() string {
	stem, _, _ := strings.Cut(s.Hostname, ".")
	return stem
}

// Handle is the canonical short name of a server, e.g. "uk-lon-a01".
// Profile files are stored as Handle()+".ovpn".
func (s Server) Handle() string {
	return strings.ToLower(s.CountryCode + "-" + s.HostnameStem())
}

// ProfileName is the file name of the server's connection profile.
func (s Server) ProfileName() string {
	return s.Handle() + ".ovpn"
}

// NormalizeCountryCode maps upstream territory codes to the codes used in
// profile file names. Only GB differs.
func NormalizeCountryCode(code string) string {
	if code == "GB" {
		return "UK"
	}
	return code
}
