package transfer

import (
	"path"
	"strings"
	"time"
)

// Selector decides which remote files are eligible for download.
type Selector struct {
	// Extensions holds lower-case extensions without the leading dot.
	Extensions map[string]struct{}
	CutOff     time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewSelector normalizes exts the same way the job parameters do.
func NewSelector(exts []string, cutOff time.Duration) Selector {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if e = NormalizeExtension(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return Selector{Extensions: set, CutOff: cutOff}
}

func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func (s Selector) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Match reports whether a file named name, last modified at modTime, should be fetched.
// Files exactly CutOff old are still accepted.
func (s Selector) Match(name string, modTime time.Time) bool {
	ext := NormalizeExtension(path.Ext(name))
	if ext == "" {
		return false
	}
	if _, ok := s.Extensions[ext]; !ok {
		return false
	}
	return s.now().Sub(modTime) <= s.CutOff
}
