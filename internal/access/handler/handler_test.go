package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"aidtrace/internal/access/handler/mocks"
	"aidtrace/internal/access/models"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
	"aidtrace/pkg/testutil"
)

func newRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()
	svc := mocks.NewMockService(gomock.NewController(t))
	r := chi.NewRouter()
	r.Route("/v1", New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register)
	return r, svc
}

func TestGrant(t *testing.T) {
	testutil.Given(t, "an admin granting the scanner role", func(t *testing.T) {
		router, svc := newRouter(t)
		svc.EXPECT().Grant(gomock.Any(), domain.Identity("admin-1"), models.RoleScanner, domain.Identity("scanner-7")).Return(nil)

		testutil.Then(t, "the grant succeeds with no content", func(t *testing.T) {
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/v1/roles/scanner/members", `{"identity":"scanner-7"}`)
			rr := testutil.DoRequest(router, testutil.WithCaller(req, "admin-1"))
			testutil.AssertStatus(t, rr, http.StatusNoContent)
		})
	})

	testutil.Given(t, "a caller without the admin role", func(t *testing.T) {
		router, svc := newRouter(t)
		svc.EXPECT().Grant(gomock.Any(), gomock.Any(), models.RoleAuditor, gomock.Any()).
			Return(dErrors.New(dErrors.CodeUnauthorized, "scanner-1 cannot grant auditor"))

		testutil.Then(t, "the grant is forbidden", func(t *testing.T) {
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/v1/roles/auditor/members", `{"identity":"x-1"}`)
			rr := testutil.DoRequest(router, testutil.WithCaller(req, "scanner-1"))
			testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "unauthorized")
		})
	})

	testutil.Given(t, "an unknown role name", func(t *testing.T) {
		router, _ := newRouter(t)

		testutil.Then(t, "the request is rejected before the registry", func(t *testing.T) {
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/v1/roles/pilot/members", `{"identity":"x-1"}`)
			rr := testutil.DoRequest(router, testutil.WithCaller(req, "admin-1"))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
		})
	})

	testutil.Given(t, "no authenticated caller", func(t *testing.T) {
		router, _ := newRouter(t)

		testutil.Then(t, "the request is unauthenticated", func(t *testing.T) {
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/v1/roles/scanner/members", `{"identity":"x-1"}`)
			testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusUnauthorized)
		})
	})
}

func TestRevokeAndRenounce(t *testing.T) {
	router, svc := newRouter(t)
	svc.EXPECT().Revoke(gomock.Any(), domain.Identity("admin-1"), models.RoleNGO, domain.Identity("ngo-3")).Return(nil)
	svc.EXPECT().Renounce(gomock.Any(), domain.Identity("auditor-1"), models.RoleAuditor).Return(nil)

	rr := testutil.DoRequest(router, testutil.WithCaller(testutil.NewRequest(t, http.MethodDelete, "/v1/roles/ngo/members/ngo-3"), "admin-1"))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = testutil.DoRequest(router, testutil.WithCaller(testutil.NewRequest(t, http.MethodDelete, "/v1/roles/auditor/members/me"), "auditor-1"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRoles(t *testing.T) {
	router, svc := newRouter(t)
	svc.EXPECT().RolesOf(gomock.Any(), domain.Identity("root")).Return([]models.Role{models.RoleSuperAdmin, models.RoleAdmin}, nil)
	svc.EXPECT().RolesOf(gomock.Any(), domain.Identity("nobody")).Return(nil, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/identities/root/roles"))
	testutil.AssertStatusOK(t, rr)
	assert.JSONEq(t, `{"identity":"root","roles":["super_admin","admin"]}`, rr.Body.String())

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/identities/nobody/roles"))
	assert.JSONEq(t, `{"identity":"nobody","roles":[]}`, rr.Body.String())
}
