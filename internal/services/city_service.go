package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/skycast/internal/models"
	apperrors "github.com/charlesng35/skycast/pkg/errors"
)

var ErrCityNotFound = apperrors.New("CITY_NOT_FOUND", "City not found", http.StatusNotFound)

// CityService manages the cities each user tracks. Every operation is scoped
// to the owning user; other users' cities look absent.
type CityService struct {
	db *gorm.DB
}

func NewCityService(db *gorm.DB) (*CityService, error) {
	if db == nil {
		return nil, errors.New("city service: db is required")
	}
	return &CityService{db: db}, nil
}

func (s *CityService) Create(ctx context.Context, userID, name string) (*models.City, error) {
	ctx = ensureContext(ctx)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}

	city := &models.City{UserID: userID, Name: name}
	if err := s.db.WithContext(ctx).Create(city).Error; err != nil {
		return nil, fmt.Errorf("city service: create: %w", err)
	}
	return city, nil
}

func (s *CityService) List(ctx context.Context, userID string) ([]models.City, error) {
	ctx = ensureContext(ctx)

	var cities []models.City
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&cities).Error; err != nil {
		return nil, fmt.Errorf("city service: list: %w", err)
	}
	return cities, nil
}

func (s *CityService) Get(ctx context.Context, userID, id string) (*models.City, error) {
	ctx = ensureContext(ctx)

	var city models.City
	err := s.db.WithContext(ctx).Take(&city, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("city service: get: %w", err)
	}
	return &city, nil
}

func (s *CityService) Rename(ctx context.Context, userID, id, name string) (*models.City, error) {
	ctx = ensureContext(ctx)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}

	city, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(city).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("city service: rename: %w", err)
	}
	city.Name = name
	return city, nil
}

// Delete removes the city and any favorites pointing at it.
func (s *CityService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)

	city, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("city_id = ? AND user_id = ?", city.ID, userID).Delete(&models.Favorite{}).Error; err != nil {
			return fmt.Errorf("city service: delete favorites: %w", err)
		}
		if err := tx.Delete(&models.City{}, "id = ?", city.ID).Error; err != nil {
			return fmt.Errorf("city service: delete: %w", err)
		}
		return nil
	})
}
