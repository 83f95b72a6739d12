package usermanager

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// dbUser is the gorm model backing SQLiteUserManager.
type dbUser struct {
	Username     string `gorm:"primaryKey"`
	PasswordHash string
	Dir          string
}

// SQLiteUserManager persists users in a local sqlite database, following the
// same WAL-mode dialect configuration the example pack uses for its control
// plane store.
type SQLiteUserManager struct {
	db *gorm.DB
}

func NewSQLiteUserManager(path string) (*SQLiteUserManager, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&dbUser{}); err != nil {
		return nil, err
	}
	return &SQLiteUserManager{db: db}, nil
}

func (m *SQLiteUserManager) Authenticate(ctx context.Context, username, password string) bool {
	var u dbUser
	if err := m.db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return false
	}
	return verifyPassword(password, u.PasswordHash)
}

func (m *SQLiteUserManager) UserDir(ctx context.Context, username string) (string, bool) {
	var u dbUser
	if err := m.db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return "", false
	}
	return u.Dir, true
}

func (m *SQLiteUserManager) CreateUser(ctx context.Context, username, password string) error {
	var existing dbUser
	if err := m.db.WithContext(ctx).First(&existing, "username = ?", username).Error; err == nil {
		return ErrDuplicateUser
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	return m.db.WithContext(ctx).Create(&dbUser{
		Username:     username,
		PasswordHash: hash,
		Dir:          username,
	}).Error
}

func (m *SQLiteUserManager) DeleteUser(ctx context.Context, username string) error {
	res := m.db.WithContext(ctx).Delete(&dbUser{}, "username = ?", username)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (m *SQLiteUserManager) SetPassword(ctx context.Context, username, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	res := m.db.WithContext(ctx).Model(&dbUser{}).Where("username = ?", username).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (m *SQLiteUserManager) ListUsernames(ctx context.Context) ([]string, error) {
	var users []dbUser
	if err := m.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Username
	}
	return names, nil
}

var _ UserManager = (*SQLiteUserManager)(nil)
