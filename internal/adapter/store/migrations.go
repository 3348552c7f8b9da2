package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"semnotes/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyDimension     = []byte("dimension")
	keyEmbeddingHash = []byte("embedding_hash")
)

// SchemaInfo stores the schema version and the embedding configuration that
// produced the stored vectors.
type SchemaInfo struct {
	Version       int    `json:"version"`
	Dimension     int    `json:"dimension"`
	EmbeddingHash string `json:"embedding_hash"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltNoteStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				return fmt.Errorf("corrupt schema version: %w", err)
			}
		}
		if data := b.Get(keyDimension); data != nil {
			if err := json.Unmarshal(data, &info.Dimension); err != nil {
				return fmt.Errorf("corrupt dimension: %w", err)
			}
		}
		if data := b.Get(keyEmbeddingHash); data != nil {
			info.EmbeddingHash = string(data)
		}
		return nil
	})
	return &info, err
}

func putJSON(tx *bbolt.Tx, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put(key, data)
}

// migrate brings an older database up to CurrentSchemaVersion.
func (s *BoltNoteStore) migrate() error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}
	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}

	if info.Version == CurrentSchemaVersion {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, keySchemaVersion, CurrentSchemaVersion)
	})
}

// runMigration runs a specific version migration.
func (s *BoltNoteStore) runMigration(from, to int) error {
	switch {
	case from == 0 && to == 1:
		// Buckets are created on open.
		return nil
	default:
		return fmt.Errorf("no migration path")
	}
}

// bindDimension records the vector dimension on first use and rejects a
// later open with a different one.
func (s *BoltNoteStore) bindDimension(dimension int) (int, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return 0, err
	}
	switch {
	case info.Dimension == 0 && dimension == 0:
		return 0, nil
	case info.Dimension == 0:
		err := s.db.Update(func(tx *bbolt.Tx) error {
			return putJSON(tx, keyDimension, dimension)
		})
		if err != nil {
			return 0, fmt.Errorf("failed to record dimension: %w", err)
		}
		return dimension, nil
	case dimension == 0 || dimension == info.Dimension:
		return info.Dimension, nil
	default:
		return 0, fmt.Errorf("store holds %d-dimensional vectors, embedder produces %d; reindex into a new store", info.Dimension, dimension)
	}
}

// CheckEmbedding reports whether notes were embedded under a different
// embedding configuration than the one identified by hash.
func (s *BoltNoteStore) CheckEmbedding(hash string) (*domain.EmbeddingCheck, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}
	return domain.CompareEmbeddingHash(info.EmbeddingHash, hash), nil
}

// MarkEmbedding records hash as the configuration that produced the stored
// vectors. Call it on first use and after a full reindex.
func (s *BoltNoteStore) MarkEmbedding(hash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyEmbeddingHash, []byte(hash))
	})
}
