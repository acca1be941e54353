package snapshot

import "time"

// SelectParent returns the newest snapshot name present on both sides,
// excluding current. The embedded timestamp decides recency; the source
// modification time breaks exact ties. An empty result means no common
// ancestor exists and the run must take a full backup.
//
// Excluding current is load-bearing: the snapshot just created this run
// is source-only, but if an earlier failed run left a same-named pair, or
// modification times are skewed, following it would send a zero delta.
func (m *Manager) SelectParent(current string) (string, error) {
	source, err := m.ListSource()
	if err != nil {
		return "", err
	}
	dest, err := m.ListDest()
	if err != nil {
		return "", err
	}

	onDest := make(map[string]bool, len(dest))
	for _, name := range dest {
		onDest[name] = true
	}

	best := ""
	var bestTime time.Time
	var bestMod time.Time
	for _, name := range source {
		if name == current || !onDest[name] {
			continue
		}
		ts, ok := ParseName(m.Base(), name)
		if !ok {
			continue
		}
		mod := modTime(m.sourceDir, name)
		if best == "" || ts.After(bestTime) || (ts.Equal(bestTime) && mod.After(bestMod)) {
			best, bestTime, bestMod = name, ts, mod
		}
	}
	return best, nil
}
