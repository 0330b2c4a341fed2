package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	ErrVersionNotFound   = errors.New("model version not found")
	ErrNoActiveVersion   = errors.New("no active model version")
	ErrNoPreviousVersion = errors.New("no previous version available for rollback")
)

// ModelVersion represents a trained model artifact registered after training.
type ModelVersion struct {
	ID        string       `json:"id"`
	Version   string       `json:"version"`
	Path      string       `json:"path"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelMetrics contains held-out evaluation results for a model.
type ModelMetrics struct {
	AUCScore        float64 `json:"auc_score"`
	Accuracy        float64 `json:"accuracy"`
	F1Score         float64 `json:"f1_score"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	Threshold       float64 `json:"threshold"`
	ScalePosWeight  float64 `json:"scale_pos_weight"`
	TrainingSamples int     `json:"training_samples"`
	TestSamples     int     `json:"test_samples"`
}

// AddVersion registers a new model artifact. The newest version becomes
// active unless activate is false.
func (s *Store) AddVersion(path string, metrics ModelMetrics, activate bool) (ModelVersion, error) {
	now := time.Now().UTC()
	id := uuid.New().String()
	v := ModelVersion{
		ID:        id,
		Version:   now.Format("20060102-150405") + "-" + id[:8],
		Path:      path,
		CreatedAt: now,
		Metrics:   metrics,
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(modelsBucket))
		if activate {
			if err := clearActive(b); err != nil {
				return err
			}
			v.IsActive = true
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal model version: %w", err)
		}
		return b.Put(timeKey(now), data)
	})
	if err != nil {
		return ModelVersion{}, err
	}
	return v, nil
}

// ListVersions returns every registered version, newest first.
func (s *Store) ListVersions() ([]ModelVersion, error) {
	var versions []ModelVersion
	err := scanNewestFirst(s, modelsBucket, func(_ []byte, v ModelVersion) bool {
		versions = append(versions, v)
		return true
	})
	return versions, err
}

// ActiveVersion returns the active version or ErrNoActiveVersion.
func (s *Store) ActiveVersion() (ModelVersion, error) {
	var active *ModelVersion
	err := scanNewestFirst(s, modelsBucket, func(_ []byte, v ModelVersion) bool {
		if v.IsActive {
			active = &v
			return false
		}
		return true
	})
	if err != nil {
		return ModelVersion{}, err
	}
	if active == nil {
		return ModelVersion{}, ErrNoActiveVersion
	}
	return *active, nil
}

// ActivateVersion marks the version whose Version or ID matches ref as
// active and every other version inactive.
func (s *Store) ActivateVersion(ref string) (ModelVersion, error) {
	var activated ModelVersion
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(modelsBucket))

		var key []byte
		c := b.Cursor()
		for k, data := c.First(); k != nil; k, data = c.Next() {
			var v ModelVersion
			if err := json.Unmarshal(data, &v); err != nil {
				continue
			}
			if v.Version == ref || v.ID == ref {
				key = append([]byte(nil), k...)
				activated = v
			}
		}
		if key == nil {
			return fmt.Errorf("%w: %s", ErrVersionNotFound, ref)
		}

		if err := clearActive(b); err != nil {
			return err
		}
		activated.IsActive = true
		data, err := json.Marshal(activated)
		if err != nil {
			return fmt.Errorf("marshal model version: %w", err)
		}
		return b.Put(key, data)
	})
	if err != nil {
		return ModelVersion{}, err
	}
	return activated, nil
}

// Rollback activates the version registered just before the active one.
func (s *Store) Rollback() (ModelVersion, error) {
	versions, err := s.ListVersions()
	if err != nil {
		return ModelVersion{}, err
	}
	if len(versions) < 2 {
		return ModelVersion{}, ErrNoPreviousVersion
	}

	current := -1
	for i, v := range versions {
		if v.IsActive {
			current = i
			break
		}
	}
	if current == -1 {
		return ModelVersion{}, ErrNoActiveVersion
	}
	if current+1 >= len(versions) {
		return ModelVersion{}, ErrNoPreviousVersion
	}

	return s.ActivateVersion(versions[current+1].ID)
}

func clearActive(b *bbolt.Bucket) error {
	type update struct {
		key  []byte
		data []byte
	}
	var updates []update

	c := b.Cursor()
	for k, data := c.First(); k != nil; k, data = c.Next() {
		var v ModelVersion
		if err := json.Unmarshal(data, &v); err != nil || !v.IsActive {
			continue
		}
		v.IsActive = false
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal model version: %w", err)
		}
		updates = append(updates, update{key: append([]byte(nil), k...), data: out})
	}

	// Puts are deferred until the cursor walk is done.
	for _, u := range updates {
		if err := b.Put(u.key, u.data); err != nil {
			return err
		}
	}
	return nil
}
