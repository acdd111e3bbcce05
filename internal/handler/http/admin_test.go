package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
	apperrors "github.com/WajidAliShah2004/slack-bot/pkg/errors"
)

func newAdminTestFixture(t *testing.T) (*handlerTestFixture, *AdminHandler) {
	t.Helper()
	f := newHandlerTestFixture(t)
	return f, NewAdminHandler(f.svc, newTestLogger())
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func adminUser() *domain.User {
	return &domain.User{ID: "u-admin", Email: "admin@example.com", IsActive: true}
}

// ============================================================================
// RevokeUser
// ============================================================================

func TestRevokeUser_WithReason(t *testing.T) {
	f, h := newAdminTestFixture(t)
	f.expectAudit()

	f.userRepo.On("Deactivate", mock.Anything, "u-1", mock.AnythingOfType("time.Time")).Return(nil)

	body := bytes.NewBufferString(`{"reason":"policy violation"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u-1/revoke", body)
	r = withURLParam(withSessionUser(r, adminUser()), "id", "u-1")
	w := httptest.NewRecorder()
	h.RevokeUser(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	f.userRepo.AssertExpectations(t)
}

func TestRevokeUser_EmptyBody(t *testing.T) {
	f, h := newAdminTestFixture(t)
	f.expectAudit()

	f.userRepo.On("Deactivate", mock.Anything, "u-1", mock.AnythingOfType("time.Time")).Return(nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u-1/revoke", http.NoBody)
	r = withURLParam(withSessionUser(r, adminUser()), "id", "u-1")
	w := httptest.NewRecorder()
	h.RevokeUser(w, r)

	// The reason body is optional.
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRevokeUser_UnknownUser(t *testing.T) {
	f, h := newAdminTestFixture(t)
	f.expectAudit()

	f.userRepo.On("Deactivate", mock.Anything, "u-missing", mock.AnythingOfType("time.Time")).
		Return(apperrors.NotFound("user", "u-missing"))
	f.userRepo.On("GetByID", mock.Anything, "u-missing").Return(nil, apperrors.ErrNotFound)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u-missing/revoke", http.NoBody)
	r = withURLParam(withSessionUser(r, adminUser()), "id", "u-missing")
	w := httptest.NewRecorder()
	h.RevokeUser(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ============================================================================
// Permissions
// ============================================================================

func TestGrantPermission_Created(t *testing.T) {
	f, h := newAdminTestFixture(t)
	f.expectAudit()

	f.userRepo.On("GetByID", mock.Anything, "u-1").Return(&domain.User{ID: "u-1", IsActive: true}, nil)
	f.grantRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(g *domain.PermissionGrant) bool {
		return g.UserID == "u-1" && g.Name == "reports.read" && g.GrantedBy == "u-admin" && g.IsActive
	})).Return(nil)

	body := bytes.NewBufferString(`{"name":"reports.read"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u-1/permissions", body)
	r = withURLParam(withSessionUser(r, adminUser()), "id", "u-1")
	w := httptest.NewRecorder()
	h.GrantPermission(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	f.grantRepo.AssertExpectations(t)
}

func TestGrantPermission_MissingName(t *testing.T) {
	_, h := newAdminTestFixture(t)

	body := bytes.NewBufferString(`{}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u-1/permissions", body)
	r = withURLParam(withSessionUser(r, adminUser()), "id", "u-1")
	w := httptest.NewRecorder()
	h.GrantPermission(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRevokePermission_Removed(t *testing.T) {
	f, h := newAdminTestFixture(t)

	f.grantRepo.On("Deactivate", mock.Anything, "u-1", "reports.read").Return(nil)

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/u-1/permissions/reports.read", http.NoBody)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "u-1")
	rctx.URLParams.Add("name", "reports.read")
	r = r.WithContext(context.WithValue(withSessionUser(r, adminUser()).Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	h.RevokePermission(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	f.grantRepo.AssertExpectations(t)
}
