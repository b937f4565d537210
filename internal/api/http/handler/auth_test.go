package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/contextdb/contextdb/internal/model"
	"github.com/contextdb/contextdb/internal/testutil"
)

// MockAuthService mocks the AuthService interface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Signup(ctx context.Context, email, name, password string) (model.User, error) {
	args := m.Called(ctx, email, name, password)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func jsonRequest(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Signup_Success(t *testing.T) {
	service := &MockAuthService{}
	service.On("Signup", mock.Anything, "user@example.com", "User", "password123").
		Return(model.User{ID: uuid.New()}, nil)

	h := NewAuth(service, testutil.MakeNoopLogger())

	c, rec := jsonRequest(t, http.MethodPost, "/api/auth/signup",
		`{"email":"user@example.com","name":"User","password":"password123"}`)
	require.NoError(t, h.Signup(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestAuthHandler_Signup_ShortPassword(t *testing.T) {
	h := NewAuth(&MockAuthService{}, testutil.MakeNoopLogger())

	c, rec := jsonRequest(t, http.MethodPost, "/api/auth/signup",
		`{"email":"user@example.com","password":"short"}`)
	require.NoError(t, h.Signup(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Signup_MissingEmail(t *testing.T) {
	h := NewAuth(&MockAuthService{}, testutil.MakeNoopLogger())

	c, rec := jsonRequest(t, http.MethodPost, "/api/auth/signup",
		`{"password":"password123"}`)
	require.NoError(t, h.Signup(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Signup_DuplicateEmail(t *testing.T) {
	service := &MockAuthService{}
	service.On("Signup", mock.Anything, "user@example.com", "", "password123").
		Return(model.User{}, model.ErrAlreadyExists)

	h := NewAuth(service, testutil.MakeNoopLogger())

	c, rec := jsonRequest(t, http.MethodPost, "/api/auth/signup",
		`{"email":"user@example.com","password":"password123"}`)
	require.NoError(t, h.Signup(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestAuthHandler_Login_Success(t *testing.T) {
	service := &MockAuthService{}
	service.On("Login", mock.Anything, "user@example.com", "password123").
		Return("token-string", nil)

	h := NewAuth(service, testutil.MakeNoopLogger())

	c, rec := jsonRequest(t, http.MethodPost, "/api/auth/login",
		`{"email":"user@example.com","password":"password123"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "token-string", body.AccessToken)
	assert.Equal(t, "Bearer", body.TokenType)
	assert.Equal(t, 900, body.ExpiresIn)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	service := &MockAuthService{}
	service.On("Login", mock.Anything, "user@example.com", "wrong-password").
		Return("", model.ErrInvalidCredentials)

	h := NewAuth(service, testutil.MakeNoopLogger())

	c, rec := jsonRequest(t, http.MethodPost, "/api/auth/login",
		`{"email":"user@example.com","password":"wrong-password"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
}

func TestAuthHandler_Login_ServiceError(t *testing.T) {
	service := &MockAuthService{}
	service.On("Login", mock.Anything, "user@example.com", "password123").
		Return("", errors.New("db down"))

	h := NewAuth(service, testutil.MakeNoopLogger())

	c, rec := jsonRequest(t, http.MethodPost, "/api/auth/login",
		`{"email":"user@example.com","password":"password123"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
