package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/print-hub-api/internal/models"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.AdminUser
	findErr          error
	createErr        error
	created          []*models.AdminUser
	lastLoginUpdated bool
}

func newMockAuthRepo(users ...*models.AdminUser) *mockAuthRepo {
	repo := &mockAuthRepo{users: make(map[string]*models.AdminUser)}
	for _, u := range users {
		repo.users[u.Username] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.AdminUser, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, ok := m.users[username]
	return ok, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.AdminUser) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, user)
	m.users[user.Username] = user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthService(repo authUserRepository) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "print-hub-api"})
}

func TestAuthServiceLoginIssuesToken(t *testing.T) {
	repo := newMockAuthRepo(&models.AdminUser{ID: "u-1", Username: "operator", PasswordHash: hashed(t, "password123"), Role: models.RoleAdmin, Active: true})
	svc := newAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "operator", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "operator", resp.User.Username)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "print-hub-api", claims.Issuer)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	repo := newMockAuthRepo(&models.AdminUser{ID: "u-1", Username: "operator", PasswordHash: hashed(t, "password123"), Role: models.RoleAdmin, Active: true})
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "operator", Password: "wrong-password"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "password123"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "", Password: ""})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	repo := newMockAuthRepo(&models.AdminUser{ID: "u-1", Username: "operator", PasswordHash: hashed(t, "password123"), Role: models.RoleAdmin})
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "operator", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRepositoryFailure(t *testing.T) {
	repo := newMockAuthRepo()
	repo.findErr = errors.New("db down")
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "operator", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	repo := newMockAuthRepo(&models.AdminUser{ID: "u-1", Username: "operator", PasswordHash: hashed(t, "password123"), Role: models.RoleAdmin, Active: true})
	svc := newAuthService(repo)
	issued := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "operator", Password: "password123"})
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(resp.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})
	other.now = func() time.Time { return issued }
	_, err = other.ValidateToken(resp.Token)
	require.Error(t, err)
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo(&models.AdminUser{ID: "u-1", Username: "root", Role: models.RoleSuperAdmin, Active: true})
	svc := newAuthService(repo)
	super := &models.JWTClaims{UserID: "u-1", Username: "root", Role: models.RoleSuperAdmin}

	info, err := svc.Register(context.Background(), super, models.RegisterRequest{Username: "desk2", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, info.Role)
	require.Len(t, repo.created, 1)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created[0].PasswordHash), []byte("password123")))

	_, err = svc.Register(context.Background(), super, models.RegisterRequest{Username: "desk2", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	admin := &models.JWTClaims{UserID: "u-2", Username: "desk2", Role: models.RoleAdmin}
	_, err = svc.Register(context.Background(), admin, models.RegisterRequest{Username: "desk3", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Register(context.Background(), super, models.RegisterRequest{Username: "x", Password: "short"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceMe(t *testing.T) {
	repo := newMockAuthRepo(&models.AdminUser{ID: "u-1", Username: "operator", Role: models.RoleAdmin, Active: true})
	svc := newAuthService(repo)

	info, err := svc.Me(context.Background(), &models.JWTClaims{UserID: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, "operator", info.Username)

	_, err = svc.Me(context.Background(), &models.JWTClaims{UserID: "gone"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
