package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/skycast/internal/models"
	"github.com/charlesng35/skycast/pkg/crypto"
	apperrors "github.com/charlesng35/skycast/pkg/errors"
)

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = apperrors.ErrUserNotFound

// CreateUserInput describes the fields accepted at registration.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Location string
	TempUnit string
	WindUnit string
}

// UpdateProfileInput enumerates mutable profile attributes. The password is
// deliberately absent and only changes through the dedicated paths.
type UpdateProfileInput struct {
	Name     *string
	Location *string
	TempUnit *string
	WindUnit *string
}

// UserService is the credential store: account records and their password hashes.
type UserService struct {
	db           *gorm.DB
	auditService *AuditService
	hashCost     int
}

// UserServiceOption customises a UserService.
type UserServiceOption func(*UserService)

// WithPasswordHashCost overrides the bcrypt work factor. Tests lower it.
func WithPasswordHashCost(cost int) UserServiceOption {
	return func(s *UserService) {
		s.hashCost = cost
	}
}

func NewUserService(db *gorm.DB, auditService *AuditService, opts ...UserServiceOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	svc := &UserService{
		db:           db,
		auditService: auditService,
		hashCost:     crypto.PasswordCost,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create registers a new account with a bcrypt-hashed password. A duplicate
// email yields apperrors.ErrEmailTaken.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	switch {
	case name == "":
		return nil, apperrors.NewBadRequest("name is required")
	case email == "":
		return nil, apperrors.NewBadRequest("email is required")
	case input.Password == "":
		return nil, apperrors.NewBadRequest("password is required")
	}

	tempUnit := strings.TrimSpace(input.TempUnit)
	if tempUnit == "" {
		tempUnit = models.TempUnitFahrenheit
	}
	windUnit := strings.TrimSpace(input.WindUnit)
	if windUnit == "" {
		windUnit = models.WindUnitMPH
	}
	if err := validateUnits(tempUnit, windUnit); err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("user service: check email: %w", err)
	}
	if existing > 0 {
		return nil, apperrors.ErrEmailTaken
	}

	hashed, err := s.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hashed,
		Location: strings.TrimSpace(input.Location),
		TempUnit: tempUnit,
		WindUnit: windUnit,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID: &user.ID,
		Email:  user.Email,
		Action: AuditUserRegister,
		Result: AuditResultSuccess,
	})
	return user, nil
}

// FindByEmail returns the account including its password hash. It is meant
// for the sign-in flow only and never for API responses.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find by email: %w", err)
	}
	return &user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// HashPassword hashes a plaintext password with the service's work factor.
// Passwords bcrypt cannot hash are a 400.
func (s *UserService) HashPassword(plaintext string) (string, error) {
	if plaintext == "" {
		return "", apperrors.NewBadRequest("password is required")
	}
	hashed, err := crypto.HashWithCost(plaintext, s.hashCost)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return "", apperrors.NewBadRequest(fmt.Sprintf("password must be at most %d bytes", crypto.MaxPasswordBytes))
	}
	if err != nil {
		return "", fmt.Errorf("user service: hash password: %w", err)
	}
	return hashed, nil
}

// UpdatePassword re-hashes and overwrites the stored password.
func (s *UserService) UpdatePassword(ctx context.Context, id, newPassword string) error {
	hashed, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.SetPasswordHash(ctx, id, hashed)
}

// SetPasswordHash stores an already hashed password.
func (s *UserService) SetPasswordHash(ctx context.Context, id, hashed string) error {
	ctx = ensureContext(ctx)
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", strings.TrimSpace(id)).
		Update("password", hashed)
	if res.Error != nil {
		return fmt.Errorf("user service: update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ChangePassword verifies the current password before replacing it.
func (s *UserService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(user.Password, currentPassword) {
		recordAudit(s.auditService, ctx, AuditEntry{
			UserID: &user.ID,
			Email:  user.Email,
			Action: AuditUserPasswordChange,
			Result: AuditResultFailure,
		})
		return apperrors.ErrInvalidCredentials.WithMessage("Current password is incorrect")
	}

	if err := s.UpdatePassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	recordAudit(s.auditService, ctx, AuditEntry{
		UserID: &user.ID,
		Email:  user.Email,
		Action: AuditUserPasswordChange,
		Result: AuditResultSuccess,
	})
	return nil
}

// UpdateProfile merges the provided fields into the account.
func (s *UserService) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name, ok := trimmedPtr(input.Name); ok {
		if name == "" {
			return nil, apperrors.NewBadRequest("name cannot be empty")
		}
		updates["name"] = name
	}
	if location, ok := trimmedPtr(input.Location); ok {
		updates["location"] = location
	}
	tempUnit, windUnit := user.TempUnit, user.WindUnit
	if unit, ok := trimmedPtr(input.TempUnit); ok {
		tempUnit = unit
		updates["temp_unit"] = unit
	}
	if unit, ok := trimmedPtr(input.WindUnit); ok {
		windUnit = unit
		updates["wind_unit"] = unit
	}
	if err := validateUnits(tempUnit, windUnit); err != nil {
		return nil, err
	}

	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &user.ID,
		Email:    user.Email,
		Action:   AuditUserUpdate,
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"fields": updatedFields(updates)},
	})
	return s.GetByID(ctx, user.ID)
}

// Delete removes the account together with its cities and favorites. One-time
// codes are left for the retention job.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.City{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", user.ID).Error
	})
	if err != nil {
		return fmt.Errorf("user service: delete user: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID: &user.ID,
		Email:  user.Email,
		Action: AuditUserDelete,
		Result: AuditResultSuccess,
	})
	return nil
}

// VerifyPassword reports whether plaintext matches the user's stored hash.
func (s *UserService) VerifyPassword(user *models.User, plaintext string) bool {
	if user == nil {
		return false
	}
	return crypto.VerifyPassword(user.Password, plaintext)
}

func validateUnits(tempUnit, windUnit string) error {
	if !models.ValidTempUnit(tempUnit) {
		return apperrors.NewBadRequest("tempUnit must be F or C")
	}
	if !models.ValidWindUnit(windUnit) {
		return apperrors.NewBadRequest("windUnit must be mph or kmh")
	}
	return nil
}

func updatedFields(updates map[string]any) []string {
	fields := make([]string, 0, len(updates))
	for _, key := range []string{"name", "location", "temp_unit", "wind_unit"} {
		if _, ok := updates[key]; ok {
			fields = append(fields, key)
		}
	}
	return fields
}
