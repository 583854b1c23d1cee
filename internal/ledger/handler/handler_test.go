package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"aidtrace/internal/custody"
	"aidtrace/internal/ledger/handler/mocks"
	"aidtrace/internal/ledger/models"
	"aidtrace/internal/ledger/service"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
	"aidtrace/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service  *mocks.MockService
	receiver *mocks.MockReceiver
	router   chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.receiver = mocks.NewMockReceiver(ctrl)

	h := New(s.service, s.receiver, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	s.router.Route("/v1", h.Register)
}

func (s *HandlerSuite) do(req *http.Request, caller string) (int, []byte) {
	if caller != "" {
		req = testutil.WithCaller(req, caller)
	}
	rr := testutil.DoRequest(s.router, req)
	return rr.Code, rr.Body.Bytes()
}

func (s *HandlerSuite) TestCreateAsset() {
	s.service.EXPECT().CreateAsset(gomock.Any(), domain.Identity("donor-1"), service.CreateAssetRequest{
		ID:            "0xa1",
		Description:   "rice",
		AssignedNGO:   "ngo-1",
		GeoTag:        "depot",
		FundingAmount: 1000,
		Milestones:    []models.MilestoneRule{{Stage: models.StageBeneficiary, Percent: 100}},
	}).Return(&models.Asset{ID: "0xa1", AllocatedFunds: 1000}, nil)

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/assets",
		`{"id":"0xa1","description":"rice","assigned_ngo":"ngo-1","geo_tag":" depot ","funding_amount":1000,
		  "milestones":[{"stage":"beneficiary","percent":100}]}`)
	rr := testutil.DoRequest(s.router, testutil.WithCaller(req, "donor-1"))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "id", "0xa1")
}

func (s *HandlerSuite) TestCreateAssetFromTag() {
	want := domain.AssetIDFromTag("QR-000417")
	s.service.EXPECT().CreateAsset(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.Identity, req service.CreateAssetRequest) (*models.Asset, error) {
			s.Equal(want, req.ID)
			return &models.Asset{ID: req.ID}, nil
		})

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/assets", map[string]any{
		"tag": "QR-000417", "assigned_ngo": "ngo-1", "funding_amount": 5,
	})
	code, _ := s.do(req, "donor-1")
	s.Equal(http.StatusCreated, code)
}

func (s *HandlerSuite) TestCreateAssetRejectedBeforeService() {
	cases := []struct {
		name   string
		body   string
		caller string
		status int
		code   string
	}{
		{"unauthenticated", `{"id":"0xa1","assigned_ngo":"ngo-1","funding_amount":1}`, "", http.StatusUnauthorized, "unauthenticated"},
		{"malformed json", `{"id":`, "donor-1", http.StatusBadRequest, "bad_request"},
		{"unknown field", `{"id":"0xa1","assigned_ngo":"ngo-1","amount":1}`, "donor-1", http.StatusBadRequest, "bad_request"},
		{"id and tag", `{"id":"0xa1","tag":"QR-1","assigned_ngo":"ngo-1","funding_amount":1}`, "donor-1", http.StatusBadRequest, "invalid_input"},
		{"missing ngo", `{"id":"0xa1","funding_amount":1}`, "donor-1", http.StatusBadRequest, "invalid_input"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/assets", tc.body)
			if tc.caller != "" {
				req = testutil.WithCaller(req, tc.caller)
			}
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatusAndError(s.T(), rr, tc.status, tc.code)
		})
	}
}

func (s *HandlerSuite) TestDomainErrorsMapToStatus() {
	cases := []struct {
		err    error
		status int
	}{
		{dErrors.New(dErrors.CodeDuplicateAsset, "exists"), http.StatusConflict},
		{dErrors.New(dErrors.CodeZeroFunding, "zero"), http.StatusBadRequest},
		{dErrors.New(dErrors.CodeUnregisteredNGO, "ngo"), http.StatusBadRequest},
		{dErrors.New(dErrors.CodeUnauthorized, "role"), http.StatusForbidden},
		{dErrors.New(dErrors.CodeTransferFailed, "deposit"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		s.service.EXPECT().CreateAsset(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tc.err)
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/assets", `{"id":"0xa1","assigned_ngo":"ngo-1","funding_amount":1}`)
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, "donor-1"))
		testutil.AssertStatusAndError(s.T(), rr, tc.status, string(dErrors.CodeOf(tc.err)))
	}
}

func (s *HandlerSuite) TestInternalErrorHidesDetail() {
	s.service.EXPECT().GetPlatformStats(gomock.Any()).Return(service.PlatformStats{}, dErrors.New(dErrors.CodeInternal, "pq: relation missing"))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/stats"))
	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	body := testutil.UnmarshalErrorResponse(s.T(), rr)
	s.Equal("internal_error", body.Error)
	s.Empty(body.ErrorDescription)
}

func (s *HandlerSuite) TestLogScan() {
	proof, err := domain.ParseContentHash("0xab" + strings.Repeat("0", 62))
	s.Require().NoError(err)

	s.service.EXPECT().LogScan(gomock.Any(), domain.Identity("scanner-1"), domain.AssetID("0xa1"), service.ScanRequest{
		GeoTag:      "hub",
		Stage:       models.StageHub,
		ContentHash: proof,
		Note:        "seal intact",
	}).Return(&service.ScanResult{Payout: 400}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/assets/0xa1/scans", map[string]any{
		"geo_tag": "hub", "stage": "hub", "content_hash": proof.String(), "note": "seal intact",
	})
	rr := testutil.DoRequest(s.router, testutil.WithCaller(req, "scanner-1"))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "payout", float64(400))
}

func (s *HandlerSuite) TestLogScanValidation() {
	code, _ := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/assets/0xa1/scans", `{"geo_tag":"hub"}`), "scanner-1")
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/assets/0xa1/scans", `{"stage":"orbit"}`), "scanner-1")
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/assets/0xa1/scans", `{"stage":"hub","content_hash":"0x12"}`), "scanner-1")
	s.Equal(http.StatusBadRequest, code)
}

func (s *HandlerSuite) TestLogScanOnFlaggedAsset() {
	s.service.EXPECT().LogScan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeAssetFlagged, "asset 0xa1 is flagged"))

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/assets/0xa1/scans", `{"stage":"transport","geo_tag":"road"}`)
	rr := testutil.DoRequest(s.router, testutil.WithCaller(req, "scanner-1"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "asset_flagged")
}

func (s *HandlerSuite) TestRefund() {
	s.service.EXPECT().RequestRefund(gomock.Any(), domain.Identity("donor-1"), domain.AssetID("0xa1")).
		Return(&models.Asset{ID: "0xa1", IsRefunded: true}, uint64(600), nil)

	rr := testutil.DoRequest(s.router, testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodPost, "/v1/assets/0xa1/refund"), "donor-1"))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[RefundResponse](s.T(), rr)
	s.Equal(uint64(600), resp.Amount)
	s.True(resp.Asset.IsRefunded)
}

func (s *HandlerSuite) TestManualRelease() {
	code, body := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/assets/0xa1/release", `{"recipient":"ngo-2","amount":0}`), "auditor-1")
	s.Equal(http.StatusBadRequest, code)
	s.Contains(string(body), "invalid_amount")

	s.service.EXPECT().ManualRelease(gomock.Any(), domain.Identity("auditor-1"), domain.AssetID("0xa1"), domain.Identity("ngo-2"), uint64(250)).
		Return(&models.Asset{ID: "0xa1", ReleasedFunds: 250}, nil)
	code, _ = s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/assets/0xa1/release", `{"recipient":"ngo-2","amount":250}`), "auditor-1")
	s.Equal(http.StatusOK, code)
}

func (s *HandlerSuite) TestFlagAndUnflag() {
	s.service.EXPECT().FlagAsset(gomock.Any(), domain.Identity("auditor-1"), domain.AssetID("0xa1"), "").
		Return(&models.Asset{ID: "0xa1", IsFlagged: true}, nil)
	s.service.EXPECT().FlagAsset(gomock.Any(), domain.Identity("auditor-1"), domain.AssetID("0xa1"), "seal broken").
		Return(&models.Asset{ID: "0xa1", IsFlagged: true}, nil)
	s.service.EXPECT().UnflagAsset(gomock.Any(), domain.Identity("auditor-1"), domain.AssetID("0xa1")).
		Return(&models.Asset{ID: "0xa1"}, nil)

	code, _ := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/assets/0xa1/flag"), "auditor-1")
	s.Equal(http.StatusOK, code)
	code, _ = s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/assets/0xa1/flag", `{"reason":"seal broken"}`), "auditor-1")
	s.Equal(http.StatusOK, code)
	code, _ = s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/v1/assets/0xa1/flag"), "auditor-1")
	s.Equal(http.StatusOK, code)
}

func (s *HandlerSuite) TestMinScans() {
	s.service.EXPECT().UpdateMinScans(gomock.Any(), domain.Identity("root"), uint64(3)).Return(nil)
	s.service.EXPECT().MinScans(gomock.Any()).Return(uint64(3), nil)

	code, _ := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/v1/settings/min-scans", `{"value":3}`), "root")
	s.Equal(http.StatusOK, code)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/settings/min-scans"))
	testutil.AssertJSONContains(s.T(), rr, "value", float64(3))

	code, _ = s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/v1/settings/min-scans", `{"value":0}`), "root")
	s.Equal(http.StatusBadRequest, code)
}

func (s *HandlerSuite) TestDirectTransferRefused() {
	s.receiver.EXPECT().Receive(gomock.Any(), domain.Identity("donor-1"), uint64(10)).Return(custody.ErrUnsolicited)

	rr := testutil.DoRequest(s.router, testutil.WithCaller(
		testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/transfers", `{"amount":10}`), "donor-1"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "unsolicited_transfer")
}

func (s *HandlerSuite) TestReads() {
	s.service.EXPECT().GetAsset(gomock.Any(), domain.AssetID("0xa1")).Return(&models.Asset{ID: "0xa1"}, nil)
	s.service.EXPECT().GetProgress(gomock.Any(), domain.AssetID("0xa1")).Return(models.Progress{StagePercent: 50, FundsPercent: 40}, nil)
	s.service.EXPECT().GetScanHistory(gomock.Any(), domain.AssetID("0xa1")).Return([]models.ScanLogEntry{{Sequence: 0}}, nil)
	s.service.EXPECT().VerifyScanHistory(gomock.Any(), domain.AssetID("0xa1")).Return(models.ChainReport{AssetID: "0xa1", Entries: 1, Valid: true}, nil)
	s.service.EXPECT().GetMilestones(gomock.Any(), domain.AssetID("0xa1")).Return(nil, nil)
	s.service.EXPECT().GetDonorAssets(gomock.Any(), domain.Identity("donor-1")).Return(nil, nil)
	s.service.EXPECT().GetParticipant(gomock.Any(), domain.Identity("ngo-1")).Return(models.Participant{Identity: "ngo-1", Received: 400}, nil)

	for _, path := range []string{
		"/v1/assets/0xa1",
		"/v1/assets/0xa1/progress",
		"/v1/assets/0xa1/scans",
		"/v1/assets/0xa1/scans/verify",
		"/v1/assets/0xa1/milestones",
		"/v1/donors/donor-1/assets",
		"/v1/participants/ngo-1",
	} {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
		s.Equal(http.StatusOK, rr.Code, path)
	}
}

func (s *HandlerSuite) TestDonorAssetsRenderEmptyList() {
	s.service.EXPECT().GetDonorAssets(gomock.Any(), domain.Identity("donor-9")).Return(nil, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/donors/donor-9/assets"))
	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"donor":"donor-9","assets":[]}`, rr.Body.String())
}

func (s *HandlerSuite) TestNotFound() {
	s.service.EXPECT().GetProgress(gomock.Any(), domain.AssetID("0xnope")).
		Return(models.Progress{}, dErrors.New(dErrors.CodeNotFound, "asset 0xnope not found"))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/assets/0xnope/progress"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}
