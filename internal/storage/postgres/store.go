package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mathclub/festival-bbs/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Record is one JSON document of the key-path tree.
type Record struct {
	Path  string `gorm:"primaryKey;type:text"`
	Value string `gorm:"type:jsonb;not null"`
}

func (Record) TableName() string {
	return "bbs_records"
}

// Store implements storage.Backend on PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New connects to PostgreSQL and migrates the records table.
func New(dsn string, logLevel logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Atomic runs fn in a transaction. Loads take row locks, so two transactions
// touching the same record run one after the other.
func (s *Store) Atomic(ctx context.Context, fn func(storage.Records) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&recordTx{db: tx})
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type recordTx struct {
	db *gorm.DB
}

func (t *recordTx) Load(path string) (json.RawMessage, bool, error) {
	var rec Record
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("path = ?", path).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(rec.Value), true, nil
}

func (t *recordTx) Scan(path string) (map[string]json.RawMessage, error) {
	var recs []Record
	query := t.db.Model(&Record{})
	if path != "" {
		query = query.Where(`path LIKE ? ESCAPE '\'`, likePrefix(path))
	}
	if err := query.Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(recs))
	for _, r := range recs {
		out[r.Path] = json.RawMessage(r.Value)
	}
	return out, nil
}

func (t *recordTx) Put(path string, value json.RawMessage) error {
	rec := Record{Path: path, Value: string(value)}
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&rec).Error
}

// Insert waits on a concurrent insert of the same path and then does nothing,
// so only one creator wins.
func (t *recordTx) Insert(path string, value json.RawMessage) (bool, error) {
	rec := Record{Path: path, Value: string(value)}
	res := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (t *recordTx) Delete(path string) error {
	return t.db.
		Where(`path = ? OR path LIKE ? ESCAPE '\'`, path, likePrefix(path)).
		Delete(&Record{}).Error
}

// likePrefix matches every key strictly below path.
func likePrefix(path string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(path) + "/%"
}
