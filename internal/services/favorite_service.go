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

var (
	ErrFavoriteNotFound = apperrors.New("FAVORITE_NOT_FOUND", "Favorite not found", http.StatusNotFound)
	ErrFavoriteExists   = apperrors.New("FAVORITE_EXISTS", "City is already a favorite", http.StatusConflict)
)

// FavoriteService pins a user's cities with optional labels.
type FavoriteService struct {
	db     *gorm.DB
	cities *CityService
}

func NewFavoriteService(db *gorm.DB, cities *CityService) (*FavoriteService, error) {
	if db == nil {
		return nil, errors.New("favorite service: db is required")
	}
	if cities == nil {
		return nil, errors.New("favorite service: city service is required")
	}
	return &FavoriteService{db: db, cities: cities}, nil
}

// Create pins cityID, which must belong to userID.
func (s *FavoriteService) Create(ctx context.Context, userID, cityID, label string) (*models.Favorite, error) {
	ctx = ensureContext(ctx)

	city, err := s.cities.Get(ctx, userID, strings.TrimSpace(cityID))
	if err != nil {
		return nil, err
	}

	fav := &models.Favorite{
		UserID: userID,
		CityID: city.ID,
		Label:  strings.TrimSpace(label),
	}
	if err := s.db.WithContext(ctx).Create(fav).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrFavoriteExists
		}
		return nil, fmt.Errorf("favorite service: create: %w", err)
	}
	fav.City = city
	return fav, nil
}

// List returns the user's favorites with their city. Favorites whose city has
// disappeared are left out.
func (s *FavoriteService) List(ctx context.Context, userID string) ([]models.Favorite, error) {
	ctx = ensureContext(ctx)

	var favorites []models.Favorite
	if err := s.db.WithContext(ctx).
		Preload("City").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&favorites).Error; err != nil {
		return nil, fmt.Errorf("favorite service: list: %w", err)
	}

	valid := favorites[:0]
	for _, fav := range favorites {
		if fav.City != nil {
			valid = append(valid, fav)
		}
	}
	return valid, nil
}

func (s *FavoriteService) Get(ctx context.Context, userID, id string) (*models.Favorite, error) {
	ctx = ensureContext(ctx)

	var fav models.Favorite
	err := s.db.WithContext(ctx).
		Preload("City").
		Take(&fav, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFavoriteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("favorite service: get: %w", err)
	}
	return &fav, nil
}

func (s *FavoriteService) UpdateLabel(ctx context.Context, userID, id, label string) (*models.Favorite, error) {
	ctx = ensureContext(ctx)

	fav, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)
	if err := s.db.WithContext(ctx).Model(&models.Favorite{}).Where("id = ?", fav.ID).Update("label", label).Error; err != nil {
		return nil, fmt.Errorf("favorite service: update: %w", err)
	}
	fav.Label = label
	return fav, nil
}

func (s *FavoriteService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Favorite{})
	if res.Error != nil {
		return fmt.Errorf("favorite service: delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}
