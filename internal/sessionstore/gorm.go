package sessionstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DatabaseType selects the gorm dialect backing a GORMStore, mirroring the
// pack's control-plane store's pluggable-dialect configuration.
type DatabaseType string

const (
	DatabaseSQLite   DatabaseType = "sqlite"
	DatabasePostgres DatabaseType = "postgres"
)

// dbSession is the gorm row persisted for each Session. Handler fields never
// round-trip: they are process-local runtime state, not protocol state.
type dbSession struct {
	HostKey         string `gorm:"primaryKey"`
	SessionKey      string `gorm:"index"`
	Username        string
	UserDir         string
	ProtocolVersion int
	ClientVersion   string
	CreatedAt       int64
}

func (dbSession) TableName() string { return "sessions" }

// GORMStore persists sessions in sqlite or postgres, selected by DatabaseType.
type GORMStore struct {
	db *gorm.DB
}

// NewGORMStore opens a GORMStore. For DatabaseSQLite, dsn is a filesystem
// path (a WAL-mode DSN is built from it); for DatabasePostgres, dsn is a
// standard postgres connection string.
func NewGORMStore(kind DatabaseType, dsn string) (*GORMStore, error) {
	if dsn == "" {
		return nil, errors.New("sessionstore: dsn is required")
	}

	var dialector gorm.Dialector
	switch kind {
	case DatabaseSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case DatabasePostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.New("sessionstore: unknown database type " + string(kind))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&dbSession{}); err != nil {
		return nil, err
	}
	return &GORMStore{db: db}, nil
}

func toDBSession(s *Session) *dbSession {
	return &dbSession{
		HostKey:         s.HostKey,
		SessionKey:      s.SessionKey,
		Username:        s.Username,
		UserDir:         s.UserDir,
		ProtocolVersion: s.ProtocolVersion,
		ClientVersion:   s.ClientVersion,
		CreatedAt:       s.CreatedAt.Unix(),
	}
}

func fromDBSession(row *dbSession) *Session {
	return &Session{
		HostKey:         row.HostKey,
		SessionKey:      row.SessionKey,
		Username:        row.Username,
		UserDir:         row.UserDir,
		ProtocolVersion: row.ProtocolVersion,
		ClientVersion:   row.ClientVersion,
		CreatedAt:       unixToTime(row.CreatedAt),
	}
}

func (g *GORMStore) Load(ctx context.Context, hostKey string) (*Session, error) {
	var row dbSession
	if err := g.db.WithContext(ctx).First(&row, "host_key = ?", hostKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromDBSession(&row), nil
}

func (g *GORMStore) LoadFromSKey(ctx context.Context, skey string) (*Session, error) {
	var row dbSession
	if err := g.db.WithContext(ctx).First(&row, "session_key = ?", skey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromDBSession(&row), nil
}

func (g *GORMStore) Save(ctx context.Context, s *Session) error {
	return g.db.WithContext(ctx).Save(toDBSession(s)).Error
}

func (g *GORMStore) Delete(ctx context.Context, hostKey string) error {
	return g.db.WithContext(ctx).Delete(&dbSession{}, "host_key = ?", hostKey).Error
}

func unixToTime(sec int64) time.Time { return time.Unix(sec, 0) }

var _ Store = (*GORMStore)(nil)
