// Package repogorm stores admin users in SQL through GORM.
package repogorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/jrsteele09/tourney-finder/admins"
	"github.com/jrsteele09/tourney-finder/identity"
	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
)

var _ admins.Repo = (*Repo)(nil)

type Repo struct {
	db *gorm.DB
}

// OpenSqlite opens (creating if needed) the SQLite database at filename
// and migrates the admin_users table.
func OpenSqlite(filename string) (*Repo, error) {
	db, err := gorm.Open(sqlite.Open(filename), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("[repogorm OpenSqlite] open %s: %w", filename, err)
	}
	return New(db)
}

func New(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&admins.AdminUser{}); err != nil {
		return nil, fmt.Errorf("[repogorm New] migrate: %w", err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*admins.AdminUser, error) {
	var admin admins.AdminUser
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, autherrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[repogorm GetByID] %w", err)
	}
	return &admin, nil
}

func (r *Repo) GetByProviderUserID(ctx context.Context, providerUserID int64) (*admins.AdminUser, error) {
	var admin admins.AdminUser
	err := r.db.WithContext(ctx).Where("provider_user_id = ?", providerUserID).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, autherrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[repogorm GetByProviderUserID] %w", err)
	}
	return &admin, nil
}

// RecordLogin upserts on the unique provider_user_id, so two first logins
// racing for the same identity still end up with a single row.
func (r *Repo) RecordLogin(ctx context.Context, ident identity.ProviderIdentity, at time.Time) (*admins.AdminUser, error) {
	candidate := admins.AdminUser{
		ID:             uuid.New().String(),
		ProviderUserID: ident.ProviderUserID,
		Username:       ident.Username,
		LastLoginAt:    at,
		CreatedAt:      at,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "last_login_at"}),
	}).Create(&candidate).Error
	if err != nil {
		return nil, fmt.Errorf("[repogorm RecordLogin] upsert: %w", err)
	}
	return r.GetByProviderUserID(ctx, ident.ProviderUserID)
}

// Close releases the underlying database handle.
func (r *Repo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("[repogorm Close] %w", err)
	}
	return sqlDB.Close()
}
