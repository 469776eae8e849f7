package attachments

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// CleanupReport lists the outcome of best-effort deletes. A non-nil Err means
// some bytes were left behind; the metadata was dropped regardless.
type CleanupReport struct {
	Deleted []string
	Failed  map[string]error
}

func (r *CleanupReport) fail(filename string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]error)
	}
	r.Failed[filename] = err
}

// Err wraps every failure in ErrPartialCleanup, or returns nil.
func (r *CleanupReport) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, r.Failed[name]))
	}
	return fmt.Errorf("%w (%s): %w", ErrPartialCleanup, strings.Join(names, ", "), errors.Join(errs...))
}
