package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/recipe-api-be/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
	CreateUser(ctx context.Context, email, password, name string) (models.User, error)
	CreateSuperuser(ctx context.Context, email, password, name string) (models.User, error)
	UpdateUser(ctx context.Context, id string, update models.UserUpdate) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db       *sql.DB
	hashCost int
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db, hashCost: bcrypt.DefaultCost}
}

// NormalizeEmail lowercases the domain part of an email address. The local
// part is case sensitive and kept as given.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

const userColumns = "id, email, name, password_hash, is_active, is_staff, is_superuser, last_login, created_at"

func scanUser(scanner interface{ Scan(...any) error }) (models.User, error) {
	var user models.User
	var lastLogin sql.NullString
	var createdAt string
	err := scanner.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.IsActive, &user.IsStaff, &user.IsSuperuser, &lastLogin, &createdAt)
	if err != nil {
		return models.User{}, err
	}
	if user.LastLogin, err = parseNullableTime(lastLogin); err != nil {
		return models.User{}, err
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return user, err
}

// GetUserByEmail retrieves a single user by their normalized email, including the password hash.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", NormalizeEmail(email))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
	}
	return user, err
}

// CreateUser creates a new active user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, email, password, name string) (models.User, error) {
	return s.createUser(ctx, email, password, name, false)
}

// CreateSuperuser creates a user with staff and superuser flags set.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password, name string) (models.User, error) {
	return s.createUser(ctx, email, password, name, true)
}

func (s *UserService) createUser(ctx context.Context, email, password, name string, superuser bool) (models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return models.User{}, NewValidationError("email", "is required")
	}
	if password == "" {
		return models.User{}, NewValidationError("password", "is required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hashedPassword),
		IsActive:     true,
		IsStaff:      superuser,
		IsSuperuser:  superuser,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, is_active, is_staff, is_superuser, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.PasswordHash,
		user.IsActive, user.IsStaff, user.IsSuperuser, formatTime(user.CreatedAt))
	if isUniqueViolation(err) {
		return models.User{}, NewValidationError("email", "user with this email already exists")
	}
	if err != nil {
		return models.User{}, err
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// UpdateUser applies the non-nil fields of update. A new password is hashed.
func (s *UserService) UpdateUser(ctx context.Context, id string, update models.UserUpdate) (models.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if update.Email != nil {
		user.Email = NormalizeEmail(*update.Email)
		if user.Email == "" {
			return models.User{}, NewValidationError("email", "is required")
		}
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Password != nil {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*update.Password), s.hashCost)
		if err != nil {
			return models.User{}, fmt.Errorf("failed to hash new password: %w", err)
		}
		user.PasswordHash = string(hashedPassword)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE users SET email = ?, name = ?, password_hash = ? WHERE id = ?",
		user.Email, user.Name, user.PasswordHash, id)
	if isUniqueViolation(err) {
		return models.User{}, NewValidationError("email", "user with this email already exists")
	}
	if err != nil {
		return models.User{}, err
	}
	return s.GetUserByID(ctx, id)
}

// AuthenticateUser verifies a user's credentials and records the login time.
// Unknown emails, wrong passwords and inactive accounts all return
// ErrInvalidCredentials.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return models.User{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", formatTime(now), user.ID); err != nil {
		return models.User{}, err
	}
	user.LastLogin = &now

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}
