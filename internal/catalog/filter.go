package catalog

import "vanish/internal/model"

// Filter restricts a query by location. Within a dimension a server passes
// if its name or code is listed; dimensions are combined with AND. A nil or
// empty dimension does not restrict anything. Matching is exact and
// case-sensitive.
type Filter struct {
	Continents []string
	Countries  []string
	Regions    []string
	Cities     []string
}

// Empty reports whether the filter restricts nothing.
func (f Filter) Empty() bool {
	return len(f.Continents) == 0 && len(f.Countries) == 0 &&
		len(f.Regions) == 0 && len(f.Cities) == 0
}

// Match reports whether s passes every dimension of the filter.
func (f Filter) Match(s model.Server) bool {
	return matchContinent(s, f.Continents) &&
		matchCountry(s, f.Countries) &&
		matchRegion(s, f.Regions) &&
		matchCity(s, f.Cities)
}

func matchContinent(s model.Server, values []string) bool {
	return len(values) == 0 || contains(values, s.Continent, s.ContinentCode)
}

func matchCountry(s model.Server, values []string) bool {
	return len(values) == 0 || contains(values, s.Country, s.CountryCode)
}

func matchRegion(s model.Server, values []string) bool {
	return len(values) == 0 || contains(values, s.Region, s.RegionCode, s.RegionAbbr)
}

func matchCity(s model.Server, values []string) bool {
	return len(values) == 0 || contains(values, s.City)
}

func contains(values []string, candidates ...string) bool {
	for _, v := range values {
		for _, c := range candidates {
			if v == c {
				return true
			}
		}
	}
	return false
}
