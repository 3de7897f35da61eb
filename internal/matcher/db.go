package matcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/prediction-arb/pkg/types"
)

// matchFile is the on-disk shape of the match cache. The key names are
// stable: operators inspect and occasionally hand-edit this file.
type matchFile struct {
	Matched         map[string]string `json:"matched"`
	UnmatchedPoly   []string          `json:"unmatched_poly"`
	UnmatchedKalshi []string          `json:"unmatched_kalshi"`
	LastFullScan    string            `json:"last_full_scan"`
}

// MatchDB is the persistent market-match cache. It owns the cache file:
// every mutation is written through with an atomic rename so a crash can
// never leave a torn file. The file is the single source of truth on
// startup.
type MatchDB struct {
	path   string
	logger *zap.Logger

	mu        sync.Mutex
	data      matchFile
	usedB     map[string]string   // kalshi ticker -> poly id
	unmatched map[string]struct{} // poly ids known not to match
}

// OpenDB loads the match cache from path. A missing file starts empty; a
// corrupt file is fatal, because silently discarding the cache would
// re-run the cascade against the whole market universe and could rebind
// ids that operators rely on.
func OpenDB(path string, logger *zap.Logger) (*MatchDB, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	db := &MatchDB{
		path:   path,
		logger: logger,
		data: matchFile{
			Matched:         make(map[string]string),
			UnmatchedPoly:   []string{},
			UnmatchedKalshi: []string{},
		},
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.Info("match-cache-not-found-starting-empty", zap.String("path", path))
	case err != nil:
		return nil, fmt.Errorf("read match cache: %w", err)
	default:
		var loaded matchFile
		if err := json.Unmarshal(raw, &loaded); err != nil {
			return nil, fmt.Errorf("match cache %s is corrupt: %w", path, err)
		}
		if loaded.Matched == nil {
			loaded.Matched = make(map[string]string)
		}
		if loaded.UnmatchedPoly == nil {
			loaded.UnmatchedPoly = []string{}
		}
		if loaded.UnmatchedKalshi == nil {
			loaded.UnmatchedKalshi = []string{}
		}
		db.data = loaded
	}

	db.usedB = make(map[string]string, len(db.data.Matched))
	for polyID, ticker := range db.data.Matched {
		db.usedB[ticker] = polyID
	}
	db.unmatched = make(map[string]struct{}, len(db.data.UnmatchedPoly))
	for _, id := range db.data.UnmatchedPoly {
		db.unmatched[id] = struct{}{}
	}

	return db, nil
}

// Match returns the cached venue-B id for a venue-A id.
func (db *MatchDB) Match(polyID string) (string, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	ticker, ok := db.data.Matched[polyID]
	return ticker, ok
}

// IsValueUsed reports whether a venue-B id is already the value of some
// match. Value-injectivity: each ticker belongs to at most one poly market.
func (db *MatchDB) IsValueUsed(ticker string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, used := db.usedB[ticker]
	return used
}

// SetMatch records polyID -> ticker and persists. It returns false without
// mutating when the ticker is already claimed by a different poly market or
// the poly market is already matched elsewhere. Recording a match removes
// the id from the unmatched set.
func (db *MatchDB) SetMatch(polyID, ticker string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if existing, ok := db.data.Matched[polyID]; ok {
		return existing == ticker
	}
	if owner, used := db.usedB[ticker]; used && owner != polyID {
		return false
	}

	db.data.Matched[polyID] = ticker
	db.usedB[ticker] = polyID
	db.removeUnmatchedLocked(polyID)
	db.saveLocked()
	return true
}

// MarkUnmatched adds a venue-A id to the known-unmatched set and persists.
func (db *MatchDB) MarkUnmatched(polyID string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, seen := db.unmatched[polyID]; seen {
		return
	}
	db.unmatched[polyID] = struct{}{}
	db.data.UnmatchedPoly = append(db.data.UnmatchedPoly, polyID)
	db.saveLocked()
}

// IsUnmatched reports whether an id previously failed the cascade.
func (db *MatchDB) IsUnmatched(polyID string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, seen := db.unmatched[polyID]
	return seen
}

// UnmatchedPoly returns a copy of the known-unmatched venue-A ids.
func (db *MatchDB) UnmatchedPoly() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, len(db.data.UnmatchedPoly))
	copy(out, db.data.UnmatchedPoly)
	return out
}

func (db *MatchDB) removeUnmatchedLocked(polyID string) {
	if _, seen := db.unmatched[polyID]; !seen {
		return
	}
	delete(db.unmatched, polyID)
	kept := db.data.UnmatchedPoly[:0]
	for _, id := range db.data.UnmatchedPoly {
		if id != polyID {
			kept = append(kept, id)
		}
	}
	db.data.UnmatchedPoly = kept
}

// ShouldSweep reports whether the periodic re-match sweep is due. A missing
// or unparseable last-scan timestamp means a sweep has never completed.
func (db *MatchDB) ShouldSweep(interval time.Duration) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.data.LastFullScan == "" {
		return true
	}
	last, err := time.Parse(time.RFC3339, db.data.LastFullScan)
	if err != nil {
		return true
	}
	return time.Since(last) >= interval
}

// CompleteSweep stamps the sweep time and persists.
func (db *MatchDB) CompleteSweep() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data.LastFullScan = time.Now().UTC().Format(time.RFC3339)
	db.saveLocked()
}

// Stats summarizes the cache for the dashboard.
func (db *MatchDB) Stats() types.MatcherStats {
	db.mu.Lock()
	defer db.mu.Unlock()
	return types.MatcherStats{
		MatchedPairs:    len(db.data.Matched),
		UnmatchedPoly:   len(db.data.UnmatchedPoly),
		UnmatchedKalshi: len(db.data.UnmatchedKalshi),
		LastFullScan:    db.data.LastFullScan,
	}
}

// saveLocked writes the cache through a temp file and atomic rename.
// Persistence failures are logged, not fatal: the in-memory state stays
// authoritative for the rest of the run.
func (db *MatchDB) saveLocked() {
	raw, err := json.MarshalIndent(db.data, "", "  ")
	if err != nil {
		db.logger.Error("match-cache-marshal-error", zap.Error(err))
		return
	}

	dir := filepath.Dir(db.path)
	tmp, err := os.CreateTemp(dir, ".match_cache-*.tmp")
	if err != nil {
		db.logger.Error("match-cache-temp-create-error", zap.Error(err))
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		db.logger.Error("match-cache-write-error", zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		db.logger.Error("match-cache-temp-close-error", zap.Error(err))
		return
	}
	if err := os.Rename(tmpName, db.path); err != nil {
		os.Remove(tmpName)
		db.logger.Error("match-cache-rename-error", zap.Error(err))
	}
}
