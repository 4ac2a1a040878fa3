package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Feature is one element of the upstream status document. Only Properties
// carries server data; geometry is ignored.
type Feature struct {
	Properties map[string]json.RawMessage `json:"properties"`
}

var ErrMissingField = errors.New("missing field")

// FieldError reports a property of a raw record that is absent or malformed.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// FromRaw converts upstream feature properties into a Server. Map-rendering
// hints such as "marker-color" and "marker-cluster-small" are not carried
// over. The country code is normalized here and nowhere else.
func FromRaw(props map[string]json.RawMessage) (Server, error) {
	if props == nil {
		return Server{}, &FieldError{Field: "properties", Err: ErrMissingField}
	}

	var s Server
	strs := []struct {
		key string
		dst *string
	}{
		{"continent", &s.Continent},
		{"continentCode", &s.ContinentCode},
		{"country", &s.Country},
		{"countryCode", &s.CountryCode},
		{"region", &s.Region},
		{"regionCode", &s.RegionCode},
		{"regionAbbr", &s.RegionAbbr},
		{"city", &s.City},
		{"hostname", &s.Hostname},
		{"ip", &s.IP},
		{"title", &s.Title},
	}
	for _, f := range strs {
		if err := decodeField(props, f.key, f.dst); err != nil {
			return Server{}, err
		}
	}

	if err := decodeField(props, "capacity", &s.Capacity); err != nil {
		return Server{}, err
	}
	if s.Capacity < 0 || s.Capacity > 100 {
		return Server{}, &FieldError{Field: "capacity", Err: fmt.Errorf("out of range: %d", s.Capacity)}
	}
	if s.Hostname == "" {
		return Server{}, &FieldError{Field: "hostname", Err: errors.New("empty")}
	}
	if len(s.CountryCode) != 2 {
		return Server{}, &FieldError{Field: "countryCode", Err: fmt.Errorf("not a 2-letter code: %q", s.CountryCode)}
	}

	s.CountryCode = NormalizeCountryCode(s.CountryCode)
	return s, nil
}

func decodeField(props map[string]json.RawMessage, key string, dst any) error {
	raw, ok := props[key]
	if !ok || string(raw) == "null" {
		return &FieldError{Field: key, Err: ErrMissingField}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &FieldError{Field: key, Err: err}
	}
	return nil
}
