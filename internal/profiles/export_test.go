package profiles

import "errors"

var ReplaceDir = replaceDir

// DisableExchange forces replaceDir onto its rename-with-backup path until
// the returned func is called.
func DisableExchange() (restore func()) {
	saved := exchange
	exchange = func(a, b string) error { return errors.New("exchange disabled") }
	return func() { exchange = saved }
}
