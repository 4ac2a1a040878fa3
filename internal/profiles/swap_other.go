//go:build !linux

package profiles

import "errors"

func renameExchange(a, b string) error {
	return errors.New("atomic exchange not supported")
}
