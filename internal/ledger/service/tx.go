package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accessmodels "aidtrace/internal/access/models"
	"aidtrace/internal/events"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
	"aidtrace/pkg/platform/sentinel"
	"aidtrace/pkg/requestcontext"
)

// movement is a value transfer settled as the last step of a transaction.
type movement struct {
	party  domain.Identity
	amount uint64
}

// effects is what a write produced besides its store mutations.
type effects struct {
	events  []events.Event
	deposit *movement
	payout  *movement
}

func (e *effects) emit(evts ...events.Event) {
	e.events = append(e.events, evts...)
}

// write runs fn in a transaction, appends its events to the outbox, settles
// the custodian movement last, and publishes the events once committed.
func (s *Service) write(ctx context.Context, op string, asset domain.AssetID, fn func(ctx context.Context, store Store, fx *effects) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("asset_id", asset.String()),
	))
	defer span.End()

	err := s.runInTx(ctx, op, asset, fn)
	s.metrics.ObserveLatency(op, time.Since(start))
	if err != nil {
		err = s.translate(ctx, op, asset, err)
		s.metrics.IncError(op, string(dErrors.CodeOf(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return err
	}
	return nil
}

func (s *Service) runInTx(ctx context.Context, op string, asset domain.AssetID, fn func(ctx context.Context, store Store, fx *effects) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TxTimeout)
		defer cancel()
	}

	var fx effects
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		fx = effects{}
		if err := fn(ctx, store, &fx); err != nil {
			return err
		}
		if len(fx.events) > 0 {
			if err := store.AppendEvents(ctx, fx.events); err != nil {
				return err
			}
		}
		if fx.deposit != nil {
			if err := s.custodian.Deposit(ctx, fx.deposit.party, fx.deposit.amount); err != nil {
				return dErrors.Wrap(err, dErrors.CodeTransferFailed, "deposit into escrow failed")
			}
		}
		if fx.payout != nil {
			if err := s.custodian.Transfer(ctx, fx.payout.party, fx.payout.amount); err != nil {
				s.logger.WarnContext(ctx, "escrow payout failed",
					"operation", op,
					"asset_id", asset,
					"recipient", fx.payout.party,
					"amount", fx.payout.amount,
					"error", err,
				)
				return dErrors.Wrap(err, dErrors.CodeTransferFailed, "transfer to "+fx.payout.party.String()+" failed")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.publisher != nil && len(fx.events) > 0 {
		s.publisher.Publish(ctx, fx.events...)
	}
	return nil
}

// translate maps store and platform failures to domain errors. Domain errors
// pass through unchanged.
func (s *Service) translate(ctx context.Context, op string, asset domain.AssetID, err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrReentrant):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, op+": ledger is already inside a transaction")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, op+": transaction aborted")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, op+": asset "+asset.String()+" not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		s.logger.WarnContext(ctx, "ledger transaction conflict", "operation", op, "asset_id", asset, "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, op+": concurrent update conflict")
	default:
		s.logger.ErrorContext(ctx, "ledger operation failed", "operation", op, "asset_id", asset, "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, op+" failed")
	}
}

// read wraps a query in a span and translates its error.
func (s *Service) read(ctx context.Context, op string, asset domain.AssetID, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("asset_id", asset.String()),
	))
	defer span.End()
	if err := fn(ctx); err != nil {
		err = s.translate(ctx, op, asset, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return err
	}
	return nil
}

func (s *Service) requireRole(ctx context.Context, caller domain.Identity, role accessmodels.Role, op string) error {
	ok, err := s.roles.HasRole(ctx, caller, role)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.Newf(dErrors.CodeUnauthorized, "%s: %s does not hold the %s role", op, caller, role)
	}
	return nil
}

// clock is the request time at the precision the stores keep.
func clock(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
}
