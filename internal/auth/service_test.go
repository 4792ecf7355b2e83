package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chatline/internal/config"
	"chatline/internal/database"
	"chatline/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	database.Store

	byUserName map[string]*models.User
	byID       map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byUserName: make(map[string]*models.User),
		byID:       make(map[string]*models.User),
	}
}

func (s *fakeUserStore) CreateUser(_ context.Context, req *models.RegisterRequest, passwordHash string) (*models.User, error) {
	if _, ok := s.byUserName[req.UserName]; ok {
		return nil, fmt.Errorf("user name already taken")
	}
	user := &models.User{
		ID:               uuid.NewString(),
		UserName:         req.UserName,
		DisplayName:      req.DisplayName,
		Email:            req.Email,
		PasswordHash:     passwordHash,
		ShowOnlineStatus: true,
		CreatedAt:        time.Now(),
	}
	s.byUserName[user.UserName] = user
	s.byID[user.ID] = user
	return user, nil
}

func (s *fakeUserStore) GetUserByUserName(_ context.Context, userName string) (*models.User, error) {
	user, ok := s.byUserName[userName]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return user, nil
}

func (s *fakeUserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return user, nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:    []byte("test-secret"),
			ExpiresIn: time.Hour,
		},
	}
}

func validRegisterRequest() *models.RegisterRequest {
	return &models.RegisterRequest{
		UserName:    "alice",
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "correct horse",
	}
}

func TestRegisterAndLoginRoundTrip(t *testing.T) {
	req := require.New(t)
	store := newFakeUserStore()
	service := NewService(store, testConfig())
	ctx := context.Background()

	registered, err := service.Register(ctx, validRegisterRequest())
	req.NoError(err)
	req.NotEmpty(registered.Token)
	req.Equal("alice", registered.User.UserName)

	// Password is stored hashed, never verbatim.
	stored := store.byUserName["alice"]
	req.NotEqual("correct horse", stored.PasswordHash)
	req.NoError(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")))

	response, err := service.Login(ctx, &models.LoginRequest{UserName: "alice", Password: "correct horse"})
	req.NoError(err)
	req.Empty(response.User.PasswordHash)

	user, err := service.GetUserFromToken(ctx, response.Token)
	req.NoError(err)
	req.Equal(registered.User.ID, user.ID)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	req := require.New(t)
	store := newFakeUserStore()
	service := NewService(store, testConfig())
	ctx := context.Background()

	_, err := service.Register(ctx, validRegisterRequest())
	req.NoError(err)

	_, err = service.Login(ctx, &models.LoginRequest{UserName: "alice", Password: "wrong"})
	req.EqualError(err, "invalid credentials")

	_, err = service.Login(ctx, &models.LoginRequest{UserName: "nobody", Password: "wrong"})
	req.EqualError(err, "invalid credentials")
}

func TestRegisterValidation(t *testing.T) {
	service := NewService(newFakeUserStore(), testConfig())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(r *models.RegisterRequest)
	}{
		{"missing user name", func(r *models.RegisterRequest) { r.UserName = "" }},
		{"missing email", func(r *models.RegisterRequest) { r.Email = "" }},
		{"bad email", func(r *models.RegisterRequest) { r.Email = "not-an-email" }},
		{"short password", func(r *models.RegisterRequest) { r.Password = "short" }},
		{"short user name", func(r *models.RegisterRequest) { r.UserName = "ab" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			request := validRegisterRequest()
			tc.mutate(request)
			_, err := service.Register(ctx, request)
			require.Error(t, err)
		})
	}
}

func TestGetUserFromTokenRejectsGarbage(t *testing.T) {
	req := require.New(t)
	service := NewService(newFakeUserStore(), testConfig())

	_, err := service.GetUserFromToken(context.Background(), "not.a.token")
	req.Error(err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	store := newFakeUserStore()
	ctx := context.Background()

	issuer := NewService(store, testConfig())
	response, err := issuer.Register(ctx, validRegisterRequest())
	req.NoError(err)

	otherCfg := testConfig()
	otherCfg.JWT.Secret = []byte("different-secret")
	verifier := NewService(store, otherCfg)

	_, err = verifier.ValidateToken(response.Token)
	req.Error(err)
}
