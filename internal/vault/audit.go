package vault

import (
	"fmt"
	"sort"
)

const AllClear = "All security checks passed"

// Audit reports entries nearing expiry, oversized stores and a stopped sweeper.
func (s *Store) Audit() []string {
	now := s.cfg.Now()
	warnAge := s.cfg.Retention * 8 / 10

	s.mu.RLock()
	type aged struct {
		key     string
		seconds int64
	}
	var old []aged
	for key, e := range s.sensitive {
		if age := now.Sub(e.StoredAt); age > warnAge {
			old = append(old, aged{key: key, seconds: int64(age.Seconds())})
		}
	}
	sensitiveCount := len(s.sensitive)
	regularCount := len(s.regular)
	s.mu.RUnlock()

	sort.Slice(old, func(i, j int) bool { return old[i].key < old[j].key })

	var findings []string
	for _, a := range old {
		findings = append(findings, fmt.Sprintf("WARNING: Sensitive data '%s' is %ds old", a.key, a.seconds))
	}
	if sensitiveCount > s.cfg.SensitiveSoftLimit {
		findings = append(findings, fmt.Sprintf("WARNING: High number of sensitive data entries: %d", sensitiveCount))
	}
	if regularCount > s.cfg.RegularSoftLimit {
		findings = append(findings, fmt.Sprintf("WARNING: High number of regular data entries: %d", regularCount))
	}
	if !s.running.Load() {
		findings = append(findings, "ERROR: Auto-cleanup sweep is not active")
	}
	if len(findings) == 0 {
		findings = append(findings, AllClear)
	}
	s.logger.Debug("security audit completed", "findings", len(findings))
	return findings
}
