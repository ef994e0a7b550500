package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	bolt "go.etcd.io/bbolt"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/interfaces"
	"zendesk-feedback-monitor/internal/models"
)

const (
	refreshRunsBucket = "refresh_runs"
	relayRunsBucket   = "relay_runs"

	// Fixed width so keys sort chronologically.
	runKeyTimeFormat = "2006-01-02T15:04:05.000000000Z"
)

var runBuckets = map[string]string{
	models.RunKindRefresh: refreshRunsBucket,
	models.RunKindRelay:   relayRunsBucket,
}

type historyStorage struct {
	db     *bolt.DB
	config *common.StorageConfig
	logger arbor.ILogger
	now    func() time.Time
}

// NewHistoryStorage opens the bbolt run history database, creating the
// directory and buckets on first use.
func NewHistoryStorage(config *common.StorageConfig, logger arbor.ILogger) (interfaces.HistoryStore, error) {
	dbDir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, common.WrapError(err, common.ErrorTypeStorage, "CREATE_DIR", "failed to create database directory")
	}

	db, err := bolt.Open(config.DatabasePath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, common.WrapError(err, common.ErrorTypeStorage, "OPEN", "failed to open database").
			WithContext("path", config.DatabasePath)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range runBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, common.WrapError(err, common.ErrorTypeStorage, "CREATE_BUCKETS", "failed to create buckets")
	}

	return &historyStorage{
		db:     db,
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (s *historyStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores record and drops entries older than the retention window.
func (s *historyStorage) RecordRun(record *models.RunRecord) error {
	bucketName, ok := runBuckets[record.Kind]
	if !ok {
		return common.NewValidationError("UNKNOWN_RUN_KIND", fmt.Sprintf("unknown run kind %q", record.Kind))
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = s.now().UTC()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return common.WrapError(err, common.ErrorTypeStorage, "MARSHAL", "failed to marshal run record")
	}

	pruned := 0
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if err := bucket.Put(runKey(record.StartedAt, record.ID), data); err != nil {
			return err
		}

		if s.config.RetentionDays > 0 {
			cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
			pruned, err = pruneBucket(bucket, cutoff)
			return err
		}
		return nil
	})
	if err != nil {
		return common.WrapError(err, common.ErrorTypeStorage, "WRITE", "failed to save run record").
			WithContext("kind", record.Kind)
	}

	if pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Str("kind", record.Kind).Msg("Pruned expired run history")
	}
	return nil
}

// ListRuns returns up to limit records, newest first. An empty kind lists
// both refresh and relay runs.
func (s *historyStorage) ListRuns(kind string, limit int) ([]*models.RunRecord, error) {
	var names []string
	if kind == "" {
		names = []string{refreshRunsBucket, relayRunsBucket}
	} else {
		name, ok := runBuckets[kind]
		if !ok {
			return nil, common.NewValidationError("UNKNOWN_RUN_KIND", fmt.Sprintf("unknown run kind %q", kind))
		}
		names = []string{name}
	}

	runs := make([]*models.RunRecord, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range names {
			c := tx.Bucket([]byte(name)).Cursor()
			count := 0
			for k, v := c.Last(); k != nil; k, v = c.Prev() {
				if limit > 0 && count >= limit {
					break
				}
				var record models.RunRecord
				if err := json.Unmarshal(v, &record); err != nil {
					continue
				}
				runs = append(runs, &record)
				count++
			}
		}
		return nil
	})
	if err != nil {
		return nil, common.WrapError(err, common.ErrorTypeStorage, "READ", "failed to load run history")
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *historyStorage) ClearRuns() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range runBuckets {
			if err := tx.DeleteBucket([]byte(name)); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return common.WrapError(err, common.ErrorTypeStorage, "CLEAR", "failed to clear run history")
	}
	return nil
}

// Prune deletes every record that started before the cutoff.
func (s *historyStorage) Prune(before time.Time) (int, error) {
	total := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range runBuckets {
			n, err := pruneBucket(tx.Bucket([]byte(name)), before)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, common.WrapError(err, common.ErrorTypeStorage, "PRUNE", "failed to prune run history")
	}
	return total, nil
}

// PruneExpiredRuns applies the retention window once. RecordRun only prunes
// the bucket it writes to, so runs left over from an earlier process stay
// until this is called.
func PruneExpiredRuns(history interfaces.HistoryStore, config *common.StorageConfig, now time.Time, logger arbor.ILogger) (int, error) {
	if config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := now.AddDate(0, 0, -config.RetentionDays)
	removed, err := history.Prune(cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Info().Int("removed", removed).Int("retention_days", config.RetentionDays).Msg("Pruned expired run history")
	}
	return removed, nil
}

func pruneBucket(bucket *bolt.Bucket, before time.Time) (int, error) {
	limit := []byte(before.UTC().Format(runKeyTimeFormat))

	var expired [][]byte
	c := bucket.Cursor()
	for k, _ := c.First(); k != nil && bytes.Compare(k, limit) < 0; k, _ = c.Next() {
		expired = append(expired, append([]byte(nil), k...))
	}

	for _, k := range expired {
		if err := bucket.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

func runKey(startedAt time.Time, id string) []byte {
	return []byte(startedAt.UTC().Format(runKeyTimeFormat) + "|" + id)
}
