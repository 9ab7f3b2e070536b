package photos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SweepResult lists what a sweep deleted.
type SweepResult struct {
	Removed     []string
	TempRemoved []string
}

// Sweep deletes every photo for which inUse returns false, plus leftover
// temp files from interrupted imports. Files younger than a few minutes are
// left alone: they may belong to an item that is still being saved.
func (s *Store) Sweep(ctx context.Context, inUse func(ref string) bool) (SweepResult, error) {
	var result SweepResult

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return result, fmt.Errorf("failed to read photo directory '%s': %w", s.dir, err)
	}

	cutoff := s.now().Add(-sweepGrace)
	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !e.Type().IsRegular() {
			continue
		}

		name := e.Name()
		isTemp := strings.HasPrefix(name, tempPrefix)
		if !isTemp && (!isPhotoName(name) || inUse(name)) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue // gone already
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		if isTemp {
			result.TempRemoved = append(result.TempRemoved, name)
		} else {
			result.Removed = append(result.Removed, name)
		}
	}

	s.logger.Info("photo sweep finished", "removed", len(result.Removed), "temp_removed", len(result.TempRemoved), "errors", len(errs))
	return result, errors.Join(errs...)
}
