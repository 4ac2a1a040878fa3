package profiles

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrMalformedProfileName = errors.New("malformed profile name")

// MalformedProfileNameError names an archive member that cannot be mapped to
// a canonical handle.
type MalformedProfileNameError struct {
	Name string
}

func (e *MalformedProfileNameError) Error() string {
	return fmt.Sprintf("%v: %q", ErrMalformedProfileName, e.Name)
}

func (e *MalformedProfileNameError) Is(target error) bool {
	return target == ErrMalformedProfileName
}

// ParseName maps an upstream profile file name such as
// "ipvanish-FR-Paris-par-a01.ovpn" to its canonical name "fr-par-a01.ovpn".
// The grammar is inferred from published archives: vendor prefix, two-letter
// territory code, a free-form location, then a three-letter city slug and a
// server code.
func ParseName(vendor, name string) (string, error) {
	m := namePattern(vendor).FindStringSubmatch(name)
	if m == nil {
		return "", &MalformedProfileNameError{Name: name}
	}
	return strings.ToLower(m[1] + "-" + m[2]), nil
}

func namePattern(vendor string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(vendor) + `-([A-Z]{2})-.+-([a-z]{3}-[a-z][0-9]{2}\.ovpn)$`)
}
