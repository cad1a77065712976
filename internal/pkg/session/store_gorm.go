package session

import (
	"context"
	"errors"
	"time"

	"github.com/nekotv/core/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormStore persists device tokens in the device_tokens table.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a MySQL-backed token store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func toModel(t Token) models.DeviceTokenModel {
	return models.DeviceTokenModel{
		Username:    t.Username,
		TokenID:     t.TokenID,
		DeviceLabel: t.DeviceLabel,
		IP:          t.IP,
		IssuedAt:    t.IssuedAt,
		LastSeenAt:  t.LastSeenAt,
		ExpiresAt:   t.ExpiresAt,
	}
}

func fromModel(m models.DeviceTokenModel) Token {
	return Token{
		Username:    m.Username,
		TokenID:     m.TokenID,
		DeviceLabel: m.DeviceLabel,
		IP:          m.IP,
		IssuedAt:    m.IssuedAt,
		LastSeenAt:  m.LastSeenAt,
		ExpiresAt:   m.ExpiresAt,
	}
}

func (s *gormStore) Put(ctx context.Context, t Token) error {
	row := toModel(t)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (s *gormStore) Get(ctx context.Context, username, tokenID string) (*Token, error) {
	var row models.DeviceTokenModel
	err := s.db.WithContext(ctx).
		Where("username = ? AND token_id = ?", username, tokenID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t := fromModel(row)
	return &t, nil
}

func (s *gormStore) ListByUser(ctx context.Context, username string) ([]Token, error) {
	var rows []models.DeviceTokenModel
	err := s.db.WithContext(ctx).
		Where("username = ?", username).
		Order("issued_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	tokens := make([]Token, len(rows))
	for i, row := range rows {
		tokens[i] = fromModel(row)
	}
	return tokens, nil
}

func (s *gormStore) Delete(ctx context.Context, username, tokenID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("username = ? AND token_id = ?", username, tokenID).
		Delete(&models.DeviceTokenModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) DeleteAllByUser(ctx context.Context, username string) (int, error) {
	res := s.db.WithContext(ctx).
		Where("username = ?", username).
		Delete(&models.DeviceTokenModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// PurgeExpired removes records past their expiry. Storage hygiene only;
// validation already rejects expired tokens that are still present.
func (s *gormStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.DeviceTokenModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}
