package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aidtrace/internal/custody"
	"aidtrace/internal/ledger/models"
	"aidtrace/internal/ledger/service"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
	"aidtrace/pkg/platform/httputil"
	"aidtrace/pkg/requestcontext"
)

// Service is the ledger surface the handlers drive.
type Service interface {
	CreateAsset(ctx context.Context, caller domain.Identity, req service.CreateAssetRequest) (*models.Asset, error)
	LogScan(ctx context.Context, caller domain.Identity, id domain.AssetID, req service.ScanRequest) (*service.ScanResult, error)
	RequestRefund(ctx context.Context, caller domain.Identity, id domain.AssetID) (*models.Asset, uint64, error)
	FlagAsset(ctx context.Context, caller domain.Identity, id domain.AssetID, reason string) (*models.Asset, error)
	UnflagAsset(ctx context.Context, caller domain.Identity, id domain.AssetID) (*models.Asset, error)
	ManualRelease(ctx context.Context, caller domain.Identity, id domain.AssetID, recipient domain.Identity, amount uint64) (*models.Asset, error)
	UpdateMinScans(ctx context.Context, caller domain.Identity, value uint64) error

	GetAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error)
	GetProgress(ctx context.Context, id domain.AssetID) (models.Progress, error)
	GetScanHistory(ctx context.Context, id domain.AssetID) ([]models.ScanLogEntry, error)
	VerifyScanHistory(ctx context.Context, id domain.AssetID) (models.ChainReport, error)
	GetMilestones(ctx context.Context, id domain.AssetID) ([]models.Milestone, error)
	GetDonorAssets(ctx context.Context, donor domain.Identity) ([]*models.Asset, error)
	GetPlatformStats(ctx context.Context) (service.PlatformStats, error)
	GetParticipant(ctx context.Context, identity domain.Identity) (models.Participant, error)
	MinScans(ctx context.Context) (uint64, error)
}

// Receiver accepts value sent directly to the ledger.
type Receiver interface {
	Receive(ctx context.Context, from domain.Identity, amount uint64) error
}

// Handler serves the /v1 ledger endpoints.
type Handler struct {
	service  Service
	receiver Receiver
	logger   *slog.Logger
}

func New(service Service, receiver Receiver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, receiver: receiver, logger: logger}
}

// Register mounts the ledger routes. Callers must already be authenticated.
func (h *Handler) Register(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Post("/", h.HandleCreateAsset)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetAsset)
			r.Get("/progress", h.HandleGetProgress)
			r.Get("/scans", h.HandleGetScanHistory)
			r.Post("/scans", h.HandleLogScan)
			r.Get("/scans/verify", h.HandleVerifyScanHistory)
			r.Get("/milestones", h.HandleGetMilestones)
			r.Post("/refund", h.HandleRequestRefund)
			r.Post("/release", h.HandleManualRelease)
			r.Post("/flag", h.HandleFlag)
			r.Delete("/flag", h.HandleUnflag)
		})
	})
	r.Get("/donors/{identity}/assets", h.HandleGetDonorAssets)
	r.Get("/participants/{identity}", h.HandleGetParticipant)
	r.Get("/stats", h.HandleGetStats)
	r.Get("/settings/min-scans", h.HandleGetMinScans)
	r.Put("/settings/min-scans", h.HandleUpdateMinScans)
	r.Post("/transfers", h.HandleTransfer)
}

// HandleCreateAsset handles POST /v1/assets.
func (h *Handler) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateAssetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	asset, err := h.service.CreateAsset(ctx, caller, service.CreateAssetRequest{
		ID:            req.parsedID,
		Description:   req.Description,
		AssignedNGO:   req.parsedNGO,
		GeoTag:        req.GeoTag,
		FundingAmount: req.FundingAmount,
		Milestones:    req.Milestones,
	})
	if err != nil {
		h.fail(w, r, "create asset failed", err)
		return
	}
	h.logger.InfoContext(ctx, "asset created",
		"request_id", requestID,
		"asset_id", asset.ID,
		"donor", caller,
		"funding", asset.AllocatedFunds,
	)
	httputil.WriteJSON(w, http.StatusCreated, asset)
}

// HandleLogScan handles POST /v1/assets/{id}/scans.
func (h *Handler) HandleLogScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[LogScanRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.service.LogScan(ctx, caller, id, service.ScanRequest{
		GeoTag:      req.GeoTag,
		Stage:       *req.Stage,
		ContentHash: req.ContentHash,
		Note:        req.Note,
	})
	if err != nil {
		h.fail(w, r, "log scan failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleRequestRefund handles POST /v1/assets/{id}/refund.
func (h *Handler) HandleRequestRefund(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	asset, amount, err := h.service.RequestRefund(r.Context(), caller, id)
	if err != nil {
		h.fail(w, r, "refund failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RefundResponse{Asset: asset, Amount: amount})
}

// HandleManualRelease handles POST /v1/assets/{id}/release.
func (h *Handler) HandleManualRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ManualReleaseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	asset, err := h.service.ManualRelease(ctx, caller, id, req.parsedRecipient, req.Amount)
	if err != nil {
		h.fail(w, r, "manual release failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

// HandleFlag handles POST /v1/assets/{id}/flag.
func (h *Handler) HandleFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FlagRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	asset, err := h.service.FlagAsset(ctx, caller, id, req.Reason)
	if err != nil {
		h.fail(w, r, "flag failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

// HandleUnflag handles DELETE /v1/assets/{id}/flag.
func (h *Handler) HandleUnflag(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	asset, err := h.service.UnflagAsset(r.Context(), caller, id)
	if err != nil {
		h.fail(w, r, "unflag failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

// HandleUpdateMinScans handles PUT /v1/settings/min-scans.
func (h *Handler) HandleUpdateMinScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MinScansRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.UpdateMinScans(ctx, caller, req.Value); err != nil {
		h.fail(w, r, "update min scans failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MinScansResponse{Value: req.Value})
}

func (h *Handler) HandleGetMinScans(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.MinScans(r.Context())
	if err != nil {
		h.fail(w, r, "load min scans failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MinScansResponse{Value: v})
}

// HandleTransfer handles POST /v1/transfers. The ledger only takes value
// through asset registration, so every direct transfer is refused.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	err := h.receiver.Receive(ctx, caller, req.Amount)
	if err == nil {
		err = custody.ErrUnsolicited
	}
	if errors.Is(err, custody.ErrUnsolicited) {
		err = dErrors.Wrap(err, dErrors.CodeUnsolicitedTransfer, "the ledger does not accept direct transfers; fund an asset instead")
	}
	h.fail(w, r, "direct transfer refused", err)
}

func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	asset, err := h.service.GetAsset(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get asset failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

func (h *Handler) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	progress, err := h.service.GetProgress(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get progress failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, progress)
}

func (h *Handler) HandleGetScanHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.GetScanHistory(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get scan history failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ScanHistoryResponse{AssetID: id, Entries: entries})
}

func (h *Handler) HandleVerifyScanHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	report, err := h.service.VerifyScanHistory(r.Context(), id)
	if err != nil {
		h.fail(w, r, "verify scan history failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) HandleGetMilestones(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}
	ms, err := h.service.GetMilestones(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get milestones failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MilestonesResponse{AssetID: id, Milestones: ms})
}

func (h *Handler) HandleGetDonorAssets(w http.ResponseWriter, r *http.Request) {
	donor, ok := h.identity(w, r)
	if !ok {
		return
	}
	assets, err := h.service.GetDonorAssets(r.Context(), donor)
	if err != nil {
		h.fail(w, r, "get donor assets failed", err)
		return
	}
	if assets == nil {
		assets = []*models.Asset{}
	}
	httputil.WriteJSON(w, http.StatusOK, DonorAssetsResponse{Donor: donor, Assets: assets})
}

func (h *Handler) HandleGetParticipant(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetParticipant(r.Context(), identity)
	if err != nil {
		h.fail(w, r, "get participant failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetPlatformStats(r.Context())
	if err != nil {
		h.fail(w, r, "get platform stats failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
		return "", false
	}
	return caller, true
}

func (h *Handler) assetID(w http.ResponseWriter, r *http.Request) (domain.AssetID, bool) {
	id, err := domain.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return id, true
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return identity, true
}

// fail logs err at a level matching its code and writes the error reply.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"caller", requestcontext.Caller(ctx),
		"path", r.URL.Path,
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
