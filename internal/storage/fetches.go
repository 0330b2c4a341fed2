package storage

import (
	"errors"
	"time"
)

// ErrNoFetches is returned when no fetch has been recorded yet.
var ErrNoFetches = errors.New("no fetch recorded")

// FetchRecord describes one play-by-play download written to the cache.
type FetchRecord struct {
	Seasons     []int     `json:"seasons"`
	SourceURL   string    `json:"source_url"`
	Path        string    `json:"path"`
	Rows        int       `json:"rows"`
	HasPressure bool      `json:"has_pressure"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// StoreFetch records a completed fetch. A zero FetchedAt is set to now.
func (s *Store) StoreFetch(rec FetchRecord) error {
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}
	return s.put(fetchesBucket, timeKey(rec.FetchedAt), rec)
}

// LatestFetch returns the most recent fetch record.
func (s *Store) LatestFetch() (FetchRecord, error) {
	var latest *FetchRecord
	err := scanNewestFirst(s, fetchesBucket, func(_ []byte, rec FetchRecord) bool {
		latest = &rec
		return false
	})
	if err != nil {
		return FetchRecord{}, err
	}
	if latest == nil {
		return FetchRecord{}, ErrNoFetches
	}
	return *latest, nil
}

// ListFetches returns up to limit fetch records, newest first. A limit of
// zero or less returns all of them.
func (s *Store) ListFetches(limit int) ([]FetchRecord, error) {
	var out []FetchRecord
	err := scanNewestFirst(s, fetchesBucket, func(_ []byte, rec FetchRecord) bool {
		out = append(out, rec)
		return limit <= 0 || len(out) < limit
	})
	return out, err
}
