package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"

	accessmodels "aidtrace/internal/access/models"
	accessservice "aidtrace/internal/access/service"
	accessstore "aidtrace/internal/access/store"
	"aidtrace/internal/custody"
	"aidtrace/internal/events"
	"aidtrace/internal/ledger/metrics"
	"aidtrace/internal/ledger/models"
	"aidtrace/internal/ledger/store"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
	"aidtrace/pkg/requestcontext"
)

const (
	root    = domain.Identity("root")
	donor   = domain.Identity("donor-1")
	ngo     = domain.Identity("ngo-1")
	scanner = domain.Identity("scanner-1")
	auditor = domain.Identity("auditor-1")
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func proof(b byte) domain.ContentHash {
	var h domain.ContentHash
	h[0] = b
	return h
}

type LedgerSuite struct {
	suite.Suite
	ctx    context.Context
	mem    *store.Memory
	vault  *custody.Vault
	access *accessservice.Service
	pub    *capturePublisher
	svc    *Service
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), t0)
	s.mem = store.NewMemory()
	s.vault = custody.NewVault()
	s.pub = &capturePublisher{}

	s.access = accessservice.New(accessstore.NewInMemoryStore())
	s.Require().NoError(s.access.Bootstrap(s.ctx, root))
	s.Require().NoError(s.access.Grant(s.ctx, root, accessmodels.RoleNGO, ngo))
	s.Require().NoError(s.access.Grant(s.ctx, root, accessmodels.RoleScanner, scanner))
	s.Require().NoError(s.access.Grant(s.ctx, root, accessmodels.RoleAuditor, auditor))

	s.svc = New(memoryTx{mem: s.mem}, s.mem, s.vault, s.access, Config{},
		WithPublisher(s.pub),
		WithMetrics(metrics.NewWith(prometheus.NewRegistry())),
		WithTracer(noop.NewTracerProvider().Tracer("ledger-test")),
	)
}

func (s *LedgerSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), t0.Add(d))
}

func (s *LedgerSuite) create(id domain.AssetID, funding uint64) *models.Asset {
	a, err := s.svc.CreateAsset(s.ctx, donor, CreateAssetRequest{
		ID:            id,
		Description:   "rice, 40 sacks",
		AssignedNGO:   ngo,
		GeoTag:        "Nairobi depot",
		FundingAmount: funding,
	})
	s.Require().NoError(err)
	return a
}

func (s *LedgerSuite) scan(id domain.AssetID, stage models.Stage, geo string, h domain.ContentHash) (*ScanResult, error) {
	return s.svc.LogScan(s.ctx, scanner, id, ScanRequest{GeoTag: geo, Stage: stage, ContentHash: h, Note: "handoff"})
}

func (s *LedgerSuite) mustScan(id domain.AssetID, stage models.Stage, geo string, h domain.ContentHash) *ScanResult {
	res, err := s.scan(id, stage, geo, h)
	s.Require().NoError(err)
	return res
}

func (s *LedgerSuite) escrow() uint64 {
	v, err := s.vault.EscrowBalance(s.ctx)
	s.Require().NoError(err)
	return v
}

func (s *LedgerSuite) paidOut(id domain.Identity) uint64 {
	a, err := s.vault.Account(s.ctx, id)
	s.Require().NoError(err)
	return a.PaidOut
}

func (s *LedgerSuite) asset(id domain.AssetID) *models.Asset {
	a, err := s.svc.GetAsset(s.ctx, id)
	s.Require().NoError(err)
	return a
}

func (s *LedgerSuite) stats() PlatformStats {
	st, err := s.svc.GetPlatformStats(s.ctx)
	s.Require().NoError(err)
	return st
}

func (s *LedgerSuite) code(err error, code dErrors.Code, msgAndArgs ...any) {
	s.T().Helper()
	s.Require().Error(err, msgAndArgs...)
	if len(msgAndArgs) == 0 {
		msgAndArgs = []any{err.Error()}
	}
	s.Equal(code, dErrors.CodeOf(err), msgAndArgs...)
}

func (s *LedgerSuite) TestCreateAsset() {
	a := s.create("0xa1", 1000)

	s.Equal(models.StageWarehouse, a.CurrentStage)
	s.Equal(uint64(1), a.ScansCount)
	s.Equal(donor, a.Donor)
	s.Equal(t0, a.CreatedAt)

	progress, err := s.svc.GetProgress(s.ctx, "0xa1")
	s.Require().NoError(err)
	s.Equal(models.Progress{StagePercent: 0, FundsPercent: 0}, progress)

	history, err := s.svc.GetScanHistory(s.ctx, "0xa1")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(models.NoteCreated, history[0].Note)
	s.Equal(donor, history[0].Actor)
	s.False(history[0].Anomaly)

	ms, err := s.svc.GetMilestones(s.ctx, "0xa1")
	s.Require().NoError(err)
	s.Len(ms, 2)

	s.Equal(uint64(1000), s.escrow())
	s.Equal(PlatformStats{TotalAssets: 1, TotalAllocated: 1000, TotalInTransit: 1000, TotalEscrowed: 1000}, s.stats())

	p, err := s.svc.GetParticipant(s.ctx, donor)
	s.Require().NoError(err)
	s.Equal(uint64(1000), p.Donated)
	s.Equal(uint64(1), p.AssetsFunded)

	s.Equal([]events.Type{events.AssetCreated, events.ScanLogged}, s.pub.types())
	s.Len(s.mem.Outbox(), 2)
}

func (s *LedgerSuite) TestCreateAssetRejections() {
	s.create("0xa1", 1000)
	s.pub.reset()

	cases := []struct {
		name string
		req  CreateAssetRequest
		code dErrors.Code
	}{
		{"duplicate id", CreateAssetRequest{ID: "0xa1", AssignedNGO: ngo, FundingAmount: 5}, dErrors.CodeDuplicateAsset},
		{"zero funding", CreateAssetRequest{ID: "0xa2", AssignedNGO: ngo}, dErrors.CodeZeroFunding},
		{"unregistered ngo", CreateAssetRequest{ID: "0xa3", AssignedNGO: scanner, FundingAmount: 5}, dErrors.CodeUnregisteredNGO},
		{"missing ngo", CreateAssetRequest{ID: "0xa4", FundingAmount: 5}, dErrors.CodeInvalidInput},
		{"missing id", CreateAssetRequest{AssignedNGO: ngo, FundingAmount: 5}, dErrors.CodeInvalidInput},
		{"bad schedule", CreateAssetRequest{ID: "0xa5", AssignedNGO: ngo, FundingAmount: 5,
			Milestones: []models.MilestoneRule{{Stage: models.StageHub, Percent: 70}, {Stage: models.StageBeneficiary, Percent: 40}}},
			dErrors.CodeInvalidInput},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.CreateAsset(s.ctx, donor, tc.req)
			s.code(err, tc.code)
		})
	}

	s.Equal(uint64(1000), s.escrow())
	s.Equal(uint64(1), s.stats().TotalAssets)
	s.Empty(s.pub.types())
}

func (s *LedgerSuite) TestCustomSchedule() {
	_, err := s.svc.CreateAsset(s.ctx, donor, CreateAssetRequest{
		ID: "0xc1", AssignedNGO: ngo, GeoTag: "depot", FundingAmount: 1000,
		Milestones: []models.MilestoneRule{
			{Stage: models.StageTransport, Percent: 10},
			{Stage: models.StageBeneficiary, Percent: 90},
		},
	})
	s.Require().NoError(err)

	res := s.mustScan("0xc1", models.StageTransport, "border", domain.ContentHash{})
	s.Equal(uint64(100), res.Payout)
	s.Equal(uint64(100), s.paidOut(ngo))
}

func (s *LedgerSuite) TestConcurrentDuplicateCreate() {
	const workers = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		dupes     atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.CreateAsset(s.ctx, donor, CreateAssetRequest{
				ID: "0xdup", AssignedNGO: ngo, GeoTag: "depot", FundingAmount: 500,
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case dErrors.HasCode(err, dErrors.CodeDuplicateAsset):
				dupes.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), succeeded.Load())
	s.Equal(int32(workers-1), dupes.Load())
	s.Equal(uint64(500), s.escrow())
	s.Equal(uint64(1), s.stats().TotalAssets)
}

func (s *LedgerSuite) TestMilestonesReleaseFortyThenRemainder() {
	s.create("0xa1", 1000)

	res := s.mustScan("0xa1", models.StageTransport, "A104 checkpoint", domain.ContentHash{})
	s.Zero(res.Payout)

	res = s.mustScan("0xa1", models.StageHub, "Mombasa hub", proof(1))
	s.Equal(uint64(400), res.Payout)
	s.Require().Len(res.Released, 1)
	s.Equal(models.StageHub, res.Released[0].Stage)

	progress, err := s.svc.GetProgress(s.ctx, "0xa1")
	s.Require().NoError(err)
	s.Equal(models.Progress{StagePercent: 50, FundsPercent: 40}, progress)

	s.mustScan("0xa1", models.StageLocalTransport, "Kisumu road", domain.ContentHash{})
	res = s.mustScan("0xa1", models.StageBeneficiary, "Kisumu clinic", proof(2))
	s.Equal(uint64(600), res.Payout)

	a := s.asset("0xa1")
	s.Equal(uint64(1000), a.ReleasedFunds)
	s.Equal(uint64(5), a.ScansCount)
	s.Equal(uint64(1000), s.paidOut(ngo))
	s.Zero(s.escrow())

	ms, err := s.svc.GetMilestones(s.ctx, "0xa1")
	s.Require().NoError(err)
	for _, m := range ms {
		s.True(m.IsReleased)
		s.NotNil(m.ReleasedAt)
	}
	s.Equal(PlatformStats{TotalAssets: 1, TotalAllocated: 1000, TotalReleased: 1000}, s.stats())

	p, err := s.svc.GetParticipant(s.ctx, ngo)
	s.Require().NoError(err)
	s.Equal(uint64(1000), p.Received)
}

func (s *LedgerSuite) TestSkippedStagesSettleInOneTransfer() {
	s.create("0xa1", 1000)
	s.pub.reset()

	res := s.mustScan("0xa1", models.StageBeneficiary, "clinic", proof(1))
	s.Equal(uint64(1000), res.Payout)
	s.Len(res.Released, 2)
	s.Equal([]events.Type{
		events.ScanLogged,
		events.MilestoneHit, events.FundsReleased,
		events.MilestoneHit, events.FundsReleased,
	}, s.pub.types())
}

func (s *LedgerSuite) TestMilestoneReleasedAtMostOnce() {
	s.create("0xa1", 1000)
	s.mustScan("0xa1", models.StageHub, "hub", proof(1))

	_, err := s.svc.FlagAsset(s.ctx, auditor, "0xa1", "recheck")
	s.Require().NoError(err)
	_, err = s.svc.UnflagAsset(s.ctx, auditor, "0xa1")
	s.Require().NoError(err)

	res := s.mustScan("0xa1", models.StageHub, "hub annex", proof(2))
	s.Zero(res.Payout)
	s.Equal(uint64(400), s.asset("0xa1").ReleasedFunds)
}

func (s *LedgerSuite) TestMinScansGate() {
	admin := root
	s.Require().NoError(s.svc.UpdateMinScans(s.ctx, admin, 4))
	v, err := s.svc.MinScans(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(4), v)

	s.create("0xa1", 1000)
	res := s.mustScan("0xa1", models.StageHub, "hub", proof(1))
	s.Zero(res.Payout, "2 scans of 4 required")
	res = s.mustScan("0xa1", models.StageLocalTransport, "road", domain.ContentHash{})
	s.Zero(res.Payout)
	res = s.mustScan("0xa1", models.StageLocalTransport, "road 2", domain.ContentHash{})
	s.Equal(uint64(400), res.Payout, "hub milestone pays once the fourth scan lands")
}

func (s *LedgerSuite) TestUpdateMinScansRules() {
	s.code(s.svc.UpdateMinScans(s.ctx, auditor, 3), dErrors.CodeUnauthorized)
	s.code(s.svc.UpdateMinScans(s.ctx, root, 0), dErrors.CodeInvalidAmount)

	v, err := s.svc.MinScans(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(DefaultMinScans), v)

	s.pub.reset()
	s.Require().NoError(s.svc.UpdateMinScans(s.ctx, root, 3))
	s.Require().Len(s.pub.events, 1)
	s.Equal(events.MinScansData{Previous: 2, Current: 3}, s.pub.events[0].Data)
}

func (s *LedgerSuite) TestRegressionFlagsAndBlocks() {
	s.create("0xa1", 1000)
	s.mustScan("0xa1", models.StageHub, "hub", proof(1))

	res := s.mustScan("0xa1", models.StageTransport, "back road", domain.ContentHash{})
	s.Equal([]string{"regression"}, res.Anomalies)
	s.True(res.Entry.Anomaly)
	s.True(res.Asset.IsFlagged)
	s.Equal(models.StageTransport, res.Asset.CurrentStage, "anomalous scan is still recorded")

	_, err := s.scan("0xa1", models.StageHub, "hub", proof(2))
	s.code(err, dErrors.CodeAssetFlagged)

	_, err = s.svc.UnflagAsset(s.ctx, auditor, "0xa1")
	s.Require().NoError(err)
	_, err = s.scan("0xa1", models.StageHub, "hub again", proof(2))
	s.NoError(err)
}

func (s *LedgerSuite) TestBeneficiaryWithoutProofIsFlagged() {
	s.create("0xa1", 1000)
	s.pub.reset()

	res := s.mustScan("0xa1", models.StageBeneficiary, "clinic", domain.ContentHash{})
	s.Equal([]string{"missing_proof"}, res.Anomalies)
	s.True(s.asset("0xa1").IsFlagged)
	s.Contains(s.pub.types(), events.AssetFlagged)
}

func (s *LedgerSuite) TestAllConditionsReported() {
	s.create("0xa1", 1000)
	s.mustScan("0xa1", models.StageLocalTransport, "road", domain.ContentHash{})

	res := s.mustScan("0xa1", models.StageHub, "road", domain.ContentHash{})
	s.Equal([]string{"regression", "stale_location", "missing_proof"}, res.Anomalies)
	s.Equal("regression,stale_location,missing_proof", s.asset("0xa1").FlagReason)
}

func (s *LedgerSuite) TestScanRequiresScanner() {
	s.create("0xa1", 1000)
	_, err := s.svc.LogScan(s.ctx, ngo, "0xa1", ScanRequest{Stage: models.StageTransport, GeoTag: "x"})
	s.code(err, dErrors.CodeUnauthorized)

	_, err = s.scan("0xmissing", models.StageTransport, "x", domain.ContentHash{})
	s.code(err, dErrors.CodeNotFound)

	_, err = s.scan("0xa1", models.Stage(9), "x", domain.ContentHash{})
	s.code(err, dErrors.CodeInvalidInput)
}

func (s *LedgerSuite) TestTransferFailureRollsBackScan() {
	s.create("0xa1", 1000)
	s.mustScan("0xa1", models.StageTransport, "road", domain.ContentHash{})
	s.pub.reset()
	outboxBefore := len(s.mem.Outbox())

	s.vault.SetRejecting(ngo, true)
	_, err := s.scan("0xa1", models.StageHub, "hub", proof(1))
	s.code(err, dErrors.CodeTransferFailed)

	a := s.asset("0xa1")
	s.Equal(uint64(2), a.ScansCount)
	s.Equal(models.StageTransport, a.CurrentStage)
	s.Zero(a.ReleasedFunds)

	history, err := s.svc.GetScanHistory(s.ctx, "0xa1")
	s.Require().NoError(err)
	s.Len(history, 2)

	ms, err := s.svc.GetMilestones(s.ctx, "0xa1")
	s.Require().NoError(err)
	s.False(ms[0].IsReleased)
	s.Zero(s.stats().TotalReleased)
	s.Empty(s.pub.types())
	s.Len(s.mem.Outbox(), outboxBefore)
	s.Equal(uint64(1000), s.escrow())

	s.vault.SetRejecting(ngo, false)
	res := s.mustScan("0xa1", models.StageHub, "hub", proof(1))
	s.Equal(uint64(400), res.Payout)
}

func (s *LedgerSuite) TestRecipientCannotReenter() {
	s.create("0xa1", 1000)
	s.mustScan("0xa1", models.StageTransport, "road", domain.ContentHash{})

	var reentryErrs []error
	s.vault.OnReceive(ngo, func(ctx context.Context, _ domain.Identity, _ uint64) error {
		_, err := s.svc.LogScan(ctx, scanner, "0xa1", ScanRequest{Stage: models.StageBeneficiary, GeoTag: "clinic", ContentHash: proof(9)})
		reentryErrs = append(reentryErrs, err)
		_, err = s.svc.GetAsset(ctx, "0xa1")
		reentryErrs = append(reentryErrs, err)
		return nil
	})

	res := s.mustScan("0xa1", models.StageHub, "hub", proof(1))
	s.Equal(uint64(400), res.Payout)
	s.Require().Len(reentryErrs, 2)
	for _, err := range reentryErrs {
		s.code(err, dErrors.CodeInvalidState)
	}
	s.Equal(uint64(400), s.asset("0xa1").ReleasedFunds)
	s.Equal(uint64(400), s.paidOut(ngo))
}

func (s *LedgerSuite) TestRecipientRejectionAfterReentryRollsBack() {
	s.create("0xa1", 1000)
	s.mustScan("0xa1", models.StageTransport, "road", domain.ContentHash{})
	s.vault.OnReceive(ngo, func(ctx context.Context, _ domain.Identity, _ uint64) error {
		_, _, err := s.svc.RequestRefund(ctx, donor, "0xa1")
		return err
	})

	_, err := s.scan("0xa1", models.StageHub, "hub", proof(1))
	s.code(err, dErrors.CodeTransferFailed)
	s.Zero(s.asset("0xa1").ReleasedFunds)
}

func (s *LedgerSuite) TestRefundScenario() {
	s.create("0xa1", 1000)
	s.mustScan("0xa1", models.StageTransport, "road", domain.ContentHash{})
	s.mustScan("0xa1", models.StageHub, "hub", proof(1))

	_, err := s.svc.FlagAsset(s.ctx, auditor, "0xa1", "seal broken")
	s.Require().NoError(err)

	a, amount, err := s.svc.RequestRefund(s.ctx, donor, "0xa1")
	s.Require().NoError(err)
	s.Equal(uint64(600), amount)
	s.True(a.IsRefunded)
	s.Equal(uint64(400), a.AllocatedFunds)
	s.Equal(uint64(400), a.ReleasedFunds)

	s.Equal(uint64(600), s.paidOut(donor))
	s.Zero(s.escrow())
	st := s.stats()
	s.Equal(uint64(1000), st.TotalAllocated)
	s.Equal(uint64(400), st.TotalReleased)
	s.Equal(uint64(600), st.TotalRefunded)
	s.Equal(uint64(600), st.TotalInTransit, "allocated minus released")
	s.Zero(st.TotalEscrowed)

	p, err := s.svc.GetParticipant(s.ctx, donor)
	s.Require().NoError(err)
	s.Equal(uint64(600), p.Refunded)

	_, _, err = s.svc.RequestRefund(s.ctx, donor, "0xa1")
	s.code(err, dErrors.CodeAlreadyRefunded)

	_, err = s.svc.ManualRelease(s.ctx, auditor, "0xa1", ngo, 1)
	s.code(err, dErrors.CodeAlreadyRefunded)

	_, err = s.svc.UnflagAsset(s.ctx, auditor, "0xa1")
	s.Require().NoError(err)
	res := s.mustScan("0xa1", models.StageBeneficiary, "clinic", proof(2))
	s.Zero(res.Payout, "refunded assets release nothing")
}

func (s *LedgerSuite) TestRefundAfterLockExpiryBeforeBeneficiary() {
	s.create("0xa1", 1000)
	s.mustScan("0xa1", models.StageTransport, "road", domain.ContentHash{})
	s.mustScan("0xa1", models.StageHub, "hub", proof(1))
	s.Require().False(s.asset("0xa1").IsFlagged)

	_, _, err := s.svc.RequestRefund(s.at(DefaultRefundLock), donor, "0xa1")
	s.code(err, dErrors.CodeNotEligible)

	a, amount, err := s.svc.RequestRefund(s.at(DefaultRefundLock+time.Second), donor, "0xa1")
	s.Require().NoError(err)
	s.Equal(uint64(600), amount)
	s.True(a.IsRefunded)
	s.Equal(uint64(600), s.paidOut(donor))
	s.Equal(uint64(400), s.paidOut(ngo))

	res := s.mustScan("0xa1", models.StageBeneficiary, "clinic", proof(2))
	s.Zero(res.Payout)
	s.Equal(uint64(400), s.asset("0xa1").ReleasedFunds)
	s.Equal(uint64(400), s.paidOut(ngo))

	st := s.stats()
	s.Equal(uint64(400), st.TotalReleased)
	s.Equal(uint64(600), st.TotalRefunded)
}

func (s *LedgerSuite) TestRefundEligibility() {
	s.create("0xa1", 1000)

	_, _, err := s.svc.RequestRefund(s.ctx, ngo, "0xa1")
	s.code(err, dErrors.CodeUnauthorized)

	_, _, err = s.svc.RequestRefund(s.ctx, donor, "0xa1")
	s.code(err, dErrors.CodeNotEligible)

	_, _, err = s.svc.RequestRefund(s.at(DefaultRefundLock), donor, "0xa1")
	s.code(err, dErrors.CodeNotEligible, "lock must be strictly exceeded")

	_, _, err = s.svc.RequestRefund(s.ctx, donor, "0xmissing")
	s.code(err, dErrors.CodeNotFound)

	_, amount, err := s.svc.RequestRefund(s.at(DefaultRefundLock+time.Second), donor, "0xa1")
	s.Require().NoError(err)
	s.Equal(uint64(1000), amount)

	_, err = s.svc.GetProgress(s.ctx, "0xa1")
	s.code(err, dErrors.CodeInvalidState)
}

func (s *LedgerSuite) TestRefundBlockedAtBeneficiary() {
	s.create("0xa1", 1000)
	s.Require().NoError(s.svc.UpdateMinScans(s.ctx, root, 10))
	s.mustScan("0xa1", models.StageBeneficiary, "clinic", proof(1))

	_, _, err := s.svc.RequestRefund(s.at(DefaultRefundLock+time.Hour), donor, "0xa1")
	s.code(err, dErrors.CodeNotEligible)
}

func (s *LedgerSuite) TestNothingToRefund() {
	s.create("0xa1", 1000)
	s.mustScan("0xa1", models.StageBeneficiary, "clinic", proof(1))
	_, err := s.svc.FlagAsset(s.ctx, auditor, "0xa1", "audit")
	s.Require().NoError(err)

	_, _, err = s.svc.RequestRefund(s.ctx, donor, "0xa1")
	s.code(err, dErrors.CodeNothingToRefund)
}

func (s *LedgerSuite) TestManualRelease() {
	s.create("0xa1", 1000)
	other := domain.Identity("field-office-7")

	_, err := s.svc.ManualRelease(s.ctx, scanner, "0xa1", other, 10)
	s.code(err, dErrors.CodeUnauthorized)

	_, err = s.svc.ManualRelease(s.ctx, auditor, "0xa1", other, 0)
	s.code(err, dErrors.CodeInvalidAmount)

	_, err = s.svc.ManualRelease(s.ctx, auditor, "0xa1", other, 1001)
	s.code(err, dErrors.CodeInsufficientEscrow)
	s.Zero(s.asset("0xa1").ReleasedFunds)
	s.Equal(uint64(1000), s.escrow())
	s.Zero(s.stats().TotalReleased)

	a, err := s.svc.ManualRelease(s.ctx, auditor, "0xa1", other, 250)
	s.Require().NoError(err)
	s.Equal(uint64(250), a.ReleasedFunds)
	s.Equal(uint64(250), s.paidOut(other))

	p, err := s.svc.GetParticipant(s.ctx, other)
	s.Require().NoError(err)
	s.Equal(uint64(250), p.Received)
	s.Equal(uint64(250), s.stats().TotalReleased)

	res := s.mustScan("0xa1", models.StageHub, "hub", proof(1))
	s.Equal(uint64(400), res.Payout)
	res = s.mustScan("0xa1", models.StageBeneficiary, "clinic", proof(2))
	s.Equal(uint64(350), res.Payout, "clamped to remaining escrow")
	s.Zero(s.escrow())
}

func (s *LedgerSuite) TestStuckMilestoneAfterClampToZero() {
	s.create("0xa1", 1000)
	_, err := s.svc.ManualRelease(s.ctx, auditor, "0xa1", ngo, 1000)
	s.Require().NoError(err)

	res := s.mustScan("0xa1", models.StageHub, "hub", proof(1))
	s.Zero(res.Payout)

	ms, err := s.svc.GetMilestones(s.ctx, "0xa1")
	s.Require().NoError(err)
	s.False(ms[0].IsReleased, "zero clamp leaves the milestone unreleased")
}

func (s *LedgerSuite) TestFlagRequiresAuditor() {
	s.create("0xa1", 1000)
	_, err := s.svc.FlagAsset(s.ctx, scanner, "0xa1", "x")
	s.code(err, dErrors.CodeUnauthorized)
	_, err = s.svc.UnflagAsset(s.ctx, donor, "0xa1")
	s.code(err, dErrors.CodeUnauthorized)
	_, err = s.svc.FlagAsset(s.ctx, auditor, "0xmissing", "x")
	s.code(err, dErrors.CodeNotFound)

	a, err := s.svc.FlagAsset(s.ctx, auditor, "0xa1", "  ")
	s.Require().NoError(err)
	s.True(a.IsFlagged)
	s.Equal("flagged by auditor", a.FlagReason)
}

func (s *LedgerSuite) TestScanHistoryVerifies() {
	s.create("0xa1", 1000)
	s.mustScan("0xa1", models.StageTransport, "road", domain.ContentHash{})
	s.mustScan("0xa1", models.StageHub, "hub", proof(1))

	report, err := s.svc.VerifyScanHistory(s.ctx, "0xa1")
	s.Require().NoError(err)
	s.True(report.Valid)
	s.Equal(3, report.Entries)

	history, err := s.svc.GetScanHistory(s.ctx, "0xa1")
	s.Require().NoError(err)
	s.Equal(report.Head, history[2].Hash)
	for i, e := range history {
		s.Equal(uint64(i), e.Sequence)
	}
}

func (s *LedgerSuite) TestDonorAssets() {
	s.create("0xa1", 10)
	s.create("0xa2", 20)

	assets, err := s.svc.GetDonorAssets(s.ctx, donor)
	s.Require().NoError(err)
	s.Require().Len(assets, 2)
	s.Equal(domain.AssetID("0xa1"), assets[0].ID)

	none, err := s.svc.GetDonorAssets(s.ctx, ngo)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *LedgerSuite) TestReadsOnUnknownAsset() {
	_, err := s.svc.GetAsset(s.ctx, "0xnope")
	s.code(err, dErrors.CodeNotFound)
	_, err = s.svc.GetProgress(s.ctx, "0xnope")
	s.code(err, dErrors.CodeNotFound)
	_, err = s.svc.GetMilestones(s.ctx, "0xnope")
	s.code(err, dErrors.CodeNotFound)
	_, err = s.svc.VerifyScanHistory(s.ctx, "0xnope")
	s.code(err, dErrors.CodeNotFound)
}

func (s *LedgerSuite) TestCancelledContextTimesOut() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.svc.CreateAsset(ctx, donor, CreateAssetRequest{ID: "0xa1", AssignedNGO: ngo, FundingAmount: 1})
	s.code(err, dErrors.CodeTimeout)
}

// Random operation sequences never break the escrow accounting.
func (s *LedgerSuite) TestAccountingInvariantsHold() {
	rng := rand.New(rand.NewPCG(7, 11))
	ids := []domain.AssetID{"0xa1", "0xa2", "0xa3"}
	for _, id := range ids {
		s.create(id, 1+rng.Uint64N(10_000))
	}

	for i := 0; i < 300; i++ {
		id := ids[rng.IntN(len(ids))]
		ctx := s.at(time.Duration(i) * time.Hour)
		var err error
		switch rng.IntN(5) {
		case 0, 1:
			stage := models.Stage(rng.IntN(int(models.LastStage) + 1))
			_, err = s.svc.LogScan(ctx, scanner, id, ScanRequest{Stage: stage, GeoTag: string(rune('a' + rng.IntN(4))), ContentHash: proof(byte(rng.IntN(2)))})
		case 2:
			_, err = s.svc.UnflagAsset(ctx, auditor, id)
		case 3:
			_, err = s.svc.ManualRelease(ctx, auditor, id, ngo, rng.Uint64N(3000))
		case 4:
			_, _, err = s.svc.RequestRefund(ctx, donor, id)
		}
		if err == nil {
			continue
		}
		var de *dErrors.Error
		s.Require().True(errors.As(err, &de), "step %d: %v", i, err)
		s.NotEqual(dErrors.CodeInternal, de.Code, "step %d: %v", i, err)
	}

	var escrowSum, allocated, released uint64
	for _, id := range ids {
		a := s.asset(id)
		s.LessOrEqual(a.ReleasedFunds, a.AllocatedFunds)
		escrowSum += a.Escrow()
		allocated += a.AllocatedFunds
		released += a.ReleasedFunds

		history, err := s.svc.GetScanHistory(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(a.ScansCount, uint64(len(history)))
	}
	st := s.stats()
	s.Equal(escrowSum, s.escrow())
	s.Equal(escrowSum, st.TotalEscrowed)
	s.Equal(st.TotalAllocated-st.TotalReleased, st.TotalInTransit)
	s.Equal(released, st.TotalReleased)
	s.Equal(st.TotalAllocated, allocated+st.TotalRefunded)
}
