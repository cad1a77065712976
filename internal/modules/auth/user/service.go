package user

import (
	"errors"
	"regexp"
	"time"

	"github.com/nekotv/core/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrUsernameTaken is returned when registering an existing username.
var ErrUsernameTaken = errors.New("user: username already taken")

// ErrInvalidUsername is returned when the username contains characters
// outside the allowed set.
var ErrInvalidUsername = errors.New("user: invalid username")

// Usernames are embedded in storage keys and credentials, so the
// charset is locked down: no separators, no glob metacharacters.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Service owns account storage: lookup, registration and credential
// material. Session lifecycle lives elsewhere; this service never
// touches device tokens.
type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// GetByUsername returns the account or (nil, nil) when absent.
func (s *Service) GetByUsername(username string) (*models.UserModel, error) {
	var u models.UserModel
	if err := s.db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Register creates an account. The first account becomes the site owner.
func (s *Service) Register(username, password, name string) (*models.UserModel, error) {
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}

	existing, err := s.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.UserModel{}).Count(&count).Error; err != nil {
		return nil, err
	}
	role := models.RoleMember
	if count == 0 {
		role = models.RoleOwner
	}

	if name == "" {
		name = username
	}
	u := models.UserModel{Username: username, Password: string(hash), Name: name, Role: role}
	return &u, s.db.Create(&u).Error
}

// VerifyPassword checks a cleartext password against the stored hash.
func (s *Service) VerifyPassword(u *models.UserModel, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

// UpdatePassword replaces the account's password hash.
func (s *Service) UpdatePassword(username, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res := s.db.Model(&models.UserModel{}).
		Where("username = ?", username).
		Update("password", string(hash))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecordLogin stamps the last login time and IP. Best-effort.
func (s *Service) RecordLogin(username, ip string) {
	now := time.Now()
	_ = s.db.Model(&models.UserModel{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"last_login_time": &now,
			"last_login_ip":   ip,
		}).Error
}
