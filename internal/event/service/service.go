// Package service implements the commit pipeline: the one place where an
// inbound action becomes part of a record's log. Validation happens before
// any mutation, the store write goes through the bounded conflict-retry
// loop, and side effects fan out only after the write is durable.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"civreg/internal/audit"
	"civreg/internal/event"
	"civreg/internal/event/authz"
	"civreg/internal/platform/metrics"
	"civreg/internal/regnumber"
	"civreg/internal/webhook"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/retry"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

var tracer = otel.Tracer("civreg/event")

// Store is the record store consumed by the pipeline. Implementations
// return sentinel.ErrConflict on identifier collision or version mismatch
// and sentinel.ErrNotFound for unknown records.
type Store interface {
	Create(ctx context.Context, doc event.EventDocument) (event.EventDocument, error)
	Update(ctx context.Context, doc event.EventDocument) (event.EventDocument, error)
	Get(ctx context.Context, id string) (event.EventDocument, error)
	GetByTrackingID(ctx context.Context, trackingID string) (event.EventDocument, error)
}

// Indexer upserts the flattened projection of a committed record.
type Indexer interface {
	Index(ctx context.Context, doc event.EventDocument) error
}

// Auditor records one committed action on the audit trail.
type Auditor interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Notifier queues an informant notification when the transition calls for
// one.
type Notifier interface {
	NotifyTransition(ctx context.Context, eventID, eventType, actionType, trackingID string) error
}

// WebhookDispatcher pushes the committed action to registered endpoints.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, payload webhook.Payload) error
}

// Reserver is an optional fast-path guard against two nodes committing the
// same transactionId concurrently. The action log remains authoritative.
type Reserver interface {
	Reserve(ctx context.Context, transactionID string) (bool, error)
}

// Service orchestrates record creation and action commits.
type Service struct {
	records  Store
	resolver *authz.Resolver
	regnums  *regnumber.Generator

	indexer  Indexer
	auditor  Auditor
	notifier Notifier
	webhooks WebhookDispatcher
	reserver Reserver

	metrics     *metrics.Metrics
	logger      *slog.Logger
	maxAttempts int
}

// Option configures the Service.
type Option func(*Service)

func WithIndexer(i Indexer) Option            { return func(s *Service) { s.indexer = i } }
func WithAuditor(a Auditor) Option            { return func(s *Service) { s.auditor = a } }
func WithNotifier(n Notifier) Option          { return func(s *Service) { s.notifier = n } }
func WithWebhooks(w WebhookDispatcher) Option { return func(s *Service) { s.webhooks = w } }
func WithReserver(r Reserver) Option          { return func(s *Service) { s.reserver = r } }
func WithMetrics(m *metrics.Metrics) Option   { return func(s *Service) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option        { return func(s *Service) { s.logger = l } }

// WithMaxAttempts overrides the conflict-retry ceiling.
func WithMaxAttempts(n int) Option { return func(s *Service) { s.maxAttempts = n } }

func NewService(records Store, resolver *authz.Resolver, regnums *regnumber.Generator, opts ...Option) *Service {
	s := &Service{
		records:     records,
		resolver:    resolver,
		regnums:     regnums,
		logger:      slog.Default(),
		maxAttempts: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new record.
type CreateInput struct {
	EventType     string
	TransactionID string
	Declaration   event.Declaration
}

// ActionInput describes one action submitted against an existing record.
type ActionInput struct {
	Type          event.ActionType
	TransactionID string
	Declaration   event.Declaration

	// AssignedTo is the target of an ASSIGN. Empty means self-assignment.
	AssignedTo string

	// OriginalActionID must reference the pending request when resolving a
	// correction.
	OriginalActionID string

	// PaperFormID feeds the registration number on REGISTER. Empty draws a
	// generated form id.
	PaperFormID string
}

// Create starts a new record with a CREATE action and a fresh tracking ID.
// Tracking-ID collisions are resolved by regeneration inside the bounded
// retry loop.
func (s *Service) Create(ctx context.Context, input CreateInput) (event.EventDocument, error) {
	ctx, span := tracer.Start(ctx, "service.Create",
		trace.WithAttributes(attribute.String("event.type", input.EventType)))
	defer span.End()
	start := time.Now()

	if input.EventType == "" {
		return event.EventDocument{}, dErrors.New(dErrors.CodeBadRequest, "event type is required")
	}
	caller := requestcontext.Caller(ctx)
	if caller.UserID == "" {
		return event.EventDocument{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}

	if input.TransactionID != "" && s.reserver != nil {
		ok, err := s.reserver.Reserve(ctx, input.TransactionID)
		if err != nil {
			s.logger.WarnContext(ctx, "idempotency reservation unavailable",
				"transaction_id", input.TransactionID,
				"error", err,
			)
		} else if !ok {
			return event.EventDocument{}, dErrors.New(dErrors.CodeConflict, "transaction already in progress")
		}
	}

	now := requestcontext.Now(ctx)
	doc := event.EventDocument{
		Type:       input.EventType,
		TrackingID: newTrackingID(input.EventType),
		CreatedAt:  now,
		UpdatedAt:  now,
		Actions: []event.Action{
			s.buildAction(ctx, event.ActionCreate, event.ActionStatusAccepted, ActionInput{
				TransactionID: input.TransactionID,
				Declaration:   input.Declaration,
			}),
		},
	}

	var stored event.EventDocument
	op := func(ctx context.Context) error {
		var err error
		stored, err = s.records.Create(ctx, doc)
		return err
	}
	regenerate := func(ctx context.Context) error {
		s.metrics.IncrementConflictRetry()
		doc.TrackingID = newTrackingID(input.EventType)
		return nil
	}
	if err := retry.WithConflictRetry(ctx, s.maxAttempts, op, regenerate); err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			s.metrics.IncrementRejected("conflict")
			return event.EventDocument{}, dErrors.Wrap(err, dErrors.CodeConflict, "could not allocate a unique tracking id")
		}
		return event.EventDocument{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "record store write failed")
	}

	s.fanOut(ctx, stored, stored.Actions[len(stored.Actions)-1])
	s.metrics.IncrementCommit(string(event.ActionCreate))
	s.metrics.ObserveCommitDuration(time.Since(start).Seconds())
	return stored, nil
}

// Commit validates and appends one action to an existing record. No
// mutation is persisted when validation fails; side effects run only after
// the write succeeds.
func (s *Service) Commit(ctx context.Context, recordID string, input ActionInput) (event.EventDocument, error) {
	ctx, span := tracer.Start(ctx, "service.Commit",
		trace.WithAttributes(
			attribute.String("event.id", recordID),
			attribute.String("action.type", string(input.Type)),
		))
	defer span.End()
	start := time.Now()

	doc, err := s.records.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return event.EventDocument{}, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return event.EventDocument{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "record store read failed")
	}

	// Idempotency: a transactionId already on the log means this submission
	// was applied before; return the stored result unchanged.
	if input.TransactionID != "" {
		for _, a := range doc.Actions {
			if a.TransactionID == input.TransactionID {
				return doc, nil
			}
		}
		if s.reserver != nil {
			ok, err := s.reserver.Reserve(ctx, input.TransactionID)
			if err != nil {
				s.logger.WarnContext(ctx, "idempotency reservation unavailable",
					"transaction_id", input.TransactionID,
					"error", err,
				)
			} else if !ok {
				return event.EventDocument{}, dErrors.New(dErrors.CodeConflict, "transaction already in progress")
			}
		}
	}

	caller := requestcontext.Caller(ctx)
	act, err := s.validate(ctx, doc, input, caller)
	if err != nil {
		return event.EventDocument{}, err
	}

	working := doc.Clone()
	if input.Type == event.ActionRegister {
		num, err := s.regnums.Generate(ctx, caller.OfficeLocation, input.PaperFormID)
		if err != nil {
			return event.EventDocument{}, dErrors.Wrap(err, dErrors.CodeInternal, "registration number generation failed")
		}
		act.RegistrationNumber = num
		working.RegistrationNumber = num
	}
	working.Actions = append(working.Actions, act)
	working.UpdatedAt = act.CreatedAt

	var stored event.EventDocument
	var alreadyApplied bool
	op := func(ctx context.Context) error {
		var err error
		stored, err = s.records.Update(ctx, working)
		return err
	}
	regenerate := func(ctx context.Context) error {
		s.metrics.IncrementConflictRetry()

		// The conflict may be a registration-number collision or a losing
		// optimistic-concurrency race; reload the record and rebase either
		// way.
		fresh, err := s.records.Get(ctx, working.ID)
		if err != nil {
			return err
		}
		if input.TransactionID != "" {
			for _, a := range fresh.Actions {
				if a.TransactionID == input.TransactionID {
					// A racing twin of this submission won; its result is
					// ours.
					stored = fresh
					alreadyApplied = true
					return retry.ErrSettled
				}
			}
		}

		// The log moved underneath us, so the action must be validated
		// against what is there now, not against the copy we loaded.
		if _, err := s.validate(ctx, fresh, input, caller); err != nil {
			return err
		}

		working = fresh.Clone()
		if input.Type == event.ActionRegister {
			num, err := s.regnums.Generate(ctx, caller.OfficeLocation, input.PaperFormID)
			if err != nil {
				return err
			}
			act.RegistrationNumber = num
			working.RegistrationNumber = num
		}
		working.Actions = append(working.Actions, act)
		working.UpdatedAt = act.CreatedAt
		return nil
	}
	if err := retry.WithConflictRetry(ctx, s.maxAttempts, op, regenerate); err != nil {
		var coded *dErrors.Error
		switch {
		case errors.Is(err, retry.ErrExhausted):
			s.metrics.IncrementRejected("conflict")
			return event.EventDocument{}, dErrors.Wrap(err, dErrors.CodeConflict, "record store kept rejecting the write")
		case errors.As(err, &coded):
			// Rebase validation rejected the action against the moved log.
			return event.EventDocument{}, err
		default:
			return event.EventDocument{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "record store write failed")
		}
	}
	if alreadyApplied {
		// Side effects ran when the twin committed.
		return stored, nil
	}

	s.fanOut(ctx, stored, act)
	s.metrics.IncrementCommit(string(input.Type))
	s.metrics.ObserveCommitDuration(time.Since(start).Seconds())
	return stored, nil
}

// Get returns one record by ID.
func (s *Service) Get(ctx context.Context, recordID string) (event.EventDocument, error) {
	doc, err := s.records.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return event.EventDocument{}, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return event.EventDocument{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "record store read failed")
	}
	return doc, nil
}

// AllowedActions computes the caller's action menu for one record.
func (s *Service) AllowedActions(ctx context.Context, recordID string) (authz.ActionMenu, error) {
	doc, err := s.Get(ctx, recordID)
	if err != nil {
		return authz.ActionMenu{}, err
	}
	menu, err := s.resolver.AllowedActions(doc.Type, doc.Actions, requestcontext.Caller(ctx))
	if err != nil {
		var pending *event.MultiplePendingActionsError
		if errors.As(err, &pending) {
			return authz.ActionMenu{}, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "record has multiple pending actions")
		}
		return authz.ActionMenu{}, err
	}
	return menu, nil
}

// validate runs the permission filter and the pending-action guard and
// returns the fully populated action to append. Nothing is mutated here.
func (s *Service) validate(ctx context.Context, doc event.EventDocument, input ActionInput, caller requestcontext.CallerInfo) (event.Action, error) {
	if caller.UserID == "" {
		return event.Action{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	if !input.Type.Valid() {
		return event.Action{}, dErrors.Newf(dErrors.CodeBadRequest, "unknown action type %q", input.Type)
	}
	if input.Type == event.ActionCreate {
		return event.Action{}, dErrors.New(dErrors.CodeBadRequest, "CREATE is only valid when creating a record")
	}

	menu, err := s.resolver.AllowedActions(doc.Type, doc.Actions, caller)
	if err != nil {
		var pending *event.MultiplePendingActionsError
		if errors.As(err, &pending) {
			s.metrics.IncrementRejected("pending")
			return event.Action{}, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "record has multiple pending actions")
		}
		return event.Action{}, err
	}
	if slices.Contains(menu.Disabled, input.Type) {
		s.metrics.IncrementRejected("assignment")
		return event.Action{}, dErrors.Newf(dErrors.CodeForbidden, "%s requires the record to be assigned to you", input.Type)
	}
	if !slices.Contains(menu.Enabled, input.Type) {
		s.metrics.IncrementRejected("status")
		state := event.Project(doc.Actions)
		return event.Action{}, dErrors.Newf(dErrors.CodeForbidden, "%s is not allowed while the record is %s", input.Type, state.Status)
	}

	switch input.Type {
	case event.ActionApproveCorrection, event.ActionRejectCorrection:
		pending, err := event.FindPendingAction(doc.Actions)
		if err != nil {
			return event.Action{}, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "record has multiple pending actions")
		}
		if pending == nil {
			return event.Action{}, dErrors.New(dErrors.CodeBadRequest, "no pending correction to resolve")
		}
		if input.OriginalActionID != pending.ID {
			return event.Action{}, dErrors.Newf(dErrors.CodeBadRequest, "originalActionId must reference pending action %s", pending.ID)
		}
	}

	status := event.ActionStatusAccepted
	if input.Type == event.ActionRequestCorrection {
		status = event.ActionStatusRequested
	}
	return s.buildAction(ctx, input.Type, status, input), nil
}

func (s *Service) buildAction(ctx context.Context, actionType event.ActionType, status event.ActionStatus, input ActionInput) event.Action {
	caller := requestcontext.Caller(ctx)
	act := event.Action{
		ID:                uuid.NewString(),
		Type:              actionType,
		Status:            status,
		CreatedBy:         caller.UserID,
		CreatedByRole:     caller.Role,
		CreatedByUserType: event.UserType(caller.UserType),
		CreatedAtLocation: caller.OfficeLocation,
		CreatedAt:         requestcontext.Now(ctx),
		TransactionID:     input.TransactionID,
		Declaration:       input.Declaration,
		OriginalActionID:  input.OriginalActionID,
	}
	if actionType == event.ActionAssign {
		act.AssignedTo = input.AssignedTo
		if act.AssignedTo == "" {
			act.AssignedTo = caller.UserID
		}
	}
	return act
}

// fanOut runs the post-commit side effects. Each is best-effort: failures
// are logged and counted, never rolled back into the commit.
func (s *Service) fanOut(ctx context.Context, doc event.EventDocument, act event.Action) {
	// Side effects must survive the request context being cancelled right
	// after the write lands.
	ctx = context.WithoutCancel(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if s.indexer != nil {
		g.Go(func() error {
			if err := s.indexer.Index(gctx, doc); err != nil {
				s.sideEffectFailed(gctx, "index", doc.ID, err)
			}
			return nil
		})
	}
	if s.auditor != nil {
		g.Go(func() error {
			entry := audit.Entry{
				EventID:        doc.ID,
				EventType:      doc.Type,
				ActionID:       act.ID,
				ActionType:     string(act.Type),
				ActionStatus:   string(act.Status),
				Actor:          act.CreatedBy,
				Role:           act.CreatedByRole,
				UserType:       string(act.CreatedByUserType),
				OfficeLocation: act.CreatedAtLocation,
				Device:         requestcontext.Device(gctx),
				ClientIP:       requestcontext.ClientIP(gctx),
				RequestID:      requestcontext.RequestID(gctx),
				Timestamp:      act.CreatedAt,
			}
			if err := s.auditor.Emit(gctx, entry); err != nil {
				s.sideEffectFailed(gctx, "audit", doc.ID, err)
			}
			return nil
		})
	}
	if s.notifier != nil {
		g.Go(func() error {
			if err := s.notifier.NotifyTransition(gctx, doc.ID, doc.Type, string(act.Type), doc.TrackingID); err != nil {
				s.sideEffectFailed(gctx, "notify", doc.ID, err)
			}
			return nil
		})
	}
	if s.webhooks != nil {
		g.Go(func() error {
			payload := webhook.Payload{
				EventID:    doc.ID,
				EventType:  doc.Type,
				ActionID:   act.ID,
				ActionType: string(act.Type),
				TrackingID: doc.TrackingID,
				Timestamp:  act.CreatedAt,
			}
			if err := s.webhooks.Dispatch(gctx, payload); err != nil {
				s.sideEffectFailed(gctx, "webhook", doc.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) sideEffectFailed(ctx context.Context, subsystem, recordID string, err error) {
	s.metrics.IncrementFanoutFailure(subsystem)
	s.logger.ErrorContext(ctx, "post-commit side effect failed",
		"subsystem", subsystem,
		"record_id", recordID,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}

