package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/contextdb/contextdb/internal/api/httpctx"
	"github.com/contextdb/contextdb/internal/model"
	"github.com/contextdb/contextdb/internal/testutil"
)

// MockContextReader mocks the ContextReader interface
type MockContextReader struct {
	mock.Mock
}

func (m *MockContextReader) Get(ctx context.Context, userID uuid.UUID, name string) (model.Context, error) {
	args := m.Called(ctx, userID, name)
	return args.Get(0).(model.Context), args.Error(1)
}

func (m *MockContextReader) List(ctx context.Context, userID uuid.UUID, tags []string) ([]model.ContextSummary, error) {
	args := m.Called(ctx, userID, tags)
	return args.Get(0).([]model.ContextSummary), args.Error(1)
}

func (m *MockContextReader) Delete(ctx context.Context, userID uuid.UUID, name string) error {
	args := m.Called(ctx, userID, name)
	return args.Error(0)
}

func contextsRequest(t *testing.T, method, target string, userID uuid.UUID, paramValue string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	if userID != uuid.Nil {
		req = req.WithContext(httpctx.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if paramValue != "" {
		c.SetParamNames("name")
		c.SetParamValues(paramValue)
	}
	return c, rec
}

func TestContextsHandler_List(t *testing.T) {
	service := &MockContextReader{}
	userID := uuid.New()

	service.On("List", mock.Anything, userID, []string(nil)).
		Return([]model.ContextSummary{{Name: "proj", Version: 2}}, nil)

	h := NewContexts(service, testutil.MakeNoopLogger())

	c, rec := contextsRequest(t, http.MethodGet, "/api/contexts", userID, "")
	require.NoError(t, h.List(c))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Contexts []model.ContextSummary `json:"contexts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Contexts, 1)
	assert.Equal(t, "proj", body.Contexts[0].Name)
}

func TestContextsHandler_List_Empty(t *testing.T) {
	service := &MockContextReader{}
	userID := uuid.New()

	service.On("List", mock.Anything, userID, []string(nil)).
		Return([]model.ContextSummary(nil), nil)

	h := NewContexts(service, testutil.MakeNoopLogger())

	c, rec := contextsRequest(t, http.MethodGet, "/api/contexts", userID, "")
	require.NoError(t, h.List(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"contexts":[]`)
}

func TestContextsHandler_List_Unauthorized(t *testing.T) {
	h := NewContexts(&MockContextReader{}, testutil.MakeNoopLogger())

	c, rec := contextsRequest(t, http.MethodGet, "/api/contexts", uuid.Nil, "")
	require.NoError(t, h.List(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContextsHandler_Get(t *testing.T) {
	service := &MockContextReader{}
	userID := uuid.New()

	service.On("Get", mock.Anything, userID, "proj").
		Return(model.Context{Name: "proj", Version: 3}, nil)

	h := NewContexts(service, testutil.MakeNoopLogger())

	c, rec := contextsRequest(t, http.MethodGet, "/api/contexts/proj", userID, "proj")
	require.NoError(t, h.Get(c))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Context model.Context `json:"context"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "proj", body.Context.Name)
	assert.Equal(t, 3, body.Context.Version)
}

func TestContextsHandler_Get_EscapedName(t *testing.T) {
	service := &MockContextReader{}
	userID := uuid.New()

	// The router matches /api/contexts/my%20proj against the decoded path,
	// so the parameter arrives as "my proj" already.
	service.On("Get", mock.Anything, userID, "my proj").
		Return(model.Context{Name: "my proj"}, nil)

	h := NewContexts(service, testutil.MakeNoopLogger())

	c, rec := contextsRequest(t, http.MethodGet, "/api/contexts/my%20proj", userID, "my proj")
	require.NoError(t, h.Get(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertExpectations(t)
}

func TestContextsHandler_Get_LiteralPercentName(t *testing.T) {
	service := &MockContextReader{}
	userID := uuid.New()

	// A name containing a literal percent arrives once-decoded in the path
	// parameter ("%2541" -> "%41") and must not be decoded a second time.
	service.On("Get", mock.Anything, userID, "file%41").
		Return(model.Context{Name: "file%41"}, nil)

	h := NewContexts(service, testutil.MakeNoopLogger())

	c, rec := contextsRequest(t, http.MethodGet, "/api/contexts/file%2541", userID, "file%41")
	require.NoError(t, h.Get(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertExpectations(t)
}

func TestContextsHandler_Get_EscapedSlashName(t *testing.T) {
	service := &MockContextReader{}
	userID := uuid.New()

	// %2F keeps the raw path around, so the router matches the escaped form
	// and the parameter needs exactly one unescape.
	service.On("Get", mock.Anything, userID, "a/b").
		Return(model.Context{Name: "a/b"}, nil)

	h := NewContexts(service, testutil.MakeNoopLogger())

	c, rec := contextsRequest(t, http.MethodGet, "/api/contexts/a%2Fb", userID, "a%2Fb")
	require.NoError(t, h.Get(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertExpectations(t)
}

func TestContextsHandler_Get_NotFound(t *testing.T) {
	service := &MockContextReader{}
	userID := uuid.New()

	service.On("Get", mock.Anything, userID, "missing").
		Return(model.Context{}, model.ErrNotFound)

	h := NewContexts(service, testutil.MakeNoopLogger())

	c, rec := contextsRequest(t, http.MethodGet, "/api/contexts/missing", userID, "missing")
	require.NoError(t, h.Get(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not found")
}

func TestContextsHandler_Delete(t *testing.T) {
	service := &MockContextReader{}
	userID := uuid.New()

	service.On("Delete", mock.Anything, userID, "proj").Return(nil)

	h := NewContexts(service, testutil.MakeNoopLogger())

	c, rec := contextsRequest(t, http.MethodDelete, "/api/contexts/proj", userID, "proj")
	require.NoError(t, h.Delete(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestContextsHandler_Delete_NotFound(t *testing.T) {
	service := &MockContextReader{}
	userID := uuid.New()

	service.On("Delete", mock.Anything, userID, "missing").Return(model.ErrNotFound)

	h := NewContexts(service, testutil.MakeNoopLogger())

	c, rec := contextsRequest(t, http.MethodDelete, "/api/contexts/missing", userID, "missing")
	require.NoError(t, h.Delete(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
