package profiles

import (
	"errors"
	"fmt"
	"os"
)

// exchange swaps two paths in one step, or fails if the platform cannot.
var exchange = renameExchange

// replaceDir makes staging the live directory. When live already exists the
// two are exchanged in one step where the platform allows it; otherwise live
// is moved aside, staging renamed in, and the old copy restored on failure.
// Either way the previous content ends up at staging's path for the caller
// to remove.
func replaceDir(staging, live string) error {
	if _, err := os.Lstat(live); errors.Is(err, os.ErrNotExist) {
		if err := os.Rename(staging, live); err != nil {
			return fmt.Errorf("install profile dir: %w", err)
		}
		return nil
	}

	if err := exchange(staging, live); err == nil {
		return nil
	}

	backup := staging + ".old"
	if err := os.Rename(live, backup); err != nil {
		return fmt.Errorf("move live profile dir aside: %w", err)
	}
	if err := os.Rename(staging, live); err != nil {
		if rerr := os.Rename(backup, live); rerr != nil {
			return fmt.Errorf("install profile dir: %v; restore failed: %w", err, rerr)
		}
		return fmt.Errorf("install profile dir: %w", err)
	}
	if err := os.Rename(backup, staging); err != nil {
		return os.RemoveAll(backup)
	}
	return nil
}
