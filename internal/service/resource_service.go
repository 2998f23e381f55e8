package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/askew/internal/domain"
	"github.com/spec-kit/askew/internal/events"
	"github.com/spec-kit/askew/internal/observability"
	"github.com/spec-kit/askew/internal/repository"
	apperrors "github.com/spec-kit/askew/pkg/util/errorutil"
)

// State is the lifecycle of a resource service. Transitions only move forward.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Health statuses.
const (
	HealthStarting = "starting"
	HealthOK       = "ok"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("service already started")

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

// ResourceDependencies bundles collaborators for a resource service.
type ResourceDependencies struct {
	Repo       repository.RecordRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// ResourceService exposes health, list and create over one record collection.
type ResourceService struct {
	schema     domain.Schema
	repo       repository.RecordRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	state      atomic.Int32
}

// NewResourceService builds the service in the Uninitialized state.
func NewResourceService(schema domain.Schema, deps ResourceDependencies) *ResourceService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{
		schema:     schema,
		repo:       deps.Repo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger.With(zap.String("collection", schema.Collection)),
		now:        time.Now,
	}
}

// Schema returns the schema the service was built with.
func (s *ResourceService) Schema() domain.Schema {
	return s.schema
}

// State reports the current lifecycle state.
func (s *ResourceService) State() State {
	return State(s.state.Load())
}

// Start connects the repository and moves the service to Ready. On failure
// the service stays Connecting; it never returns to an earlier state.
func (s *ResourceService) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateUninitialized), int32(StateConnecting)) {
		return ErrAlreadyStarted
	}
	s.logger.Info("connecting store")

	if err := s.repo.Connect(ctx); err != nil {
		s.logger.Error("store startup failed", zap.Error(err))
		return err
	}

	s.state.Store(int32(StateReady))
	s.logger.Info("service ready")
	return nil
}

// Health reports "ok" once Ready and "starting" before.
func (s *ResourceService) Health() HealthStatus {
	status := HealthStarting
	if s.State() == StateReady {
		status = HealthOK
	}
	return HealthStatus{Service: s.schema.Service, Status: status}
}

// Ready returns nil when the service is Ready and the store answers a ping.
func (s *ResourceService) Ready(ctx context.Context) error {
	if s.State() != StateReady {
		return repository.ErrStoreUnavailable
	}
	return s.repo.Ping(ctx)
}

// List returns the newest records of the collection.
func (s *ResourceService) List(ctx context.Context) ([]domain.Record, error) {
	if s.State() != StateReady {
		return nil, apperrors.NewStoreUnavailable(repository.ErrStoreUnavailable)
	}

	docs, err := s.repo.List(ctx, repository.DefaultListLimit)
	if err != nil {
		s.logger.Error("list failed", zap.Error(err))
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return domain.NormalizeAll(s.schema, docs), nil
}

// Create validates input and persists it as a new record.
func (s *ResourceService) Create(ctx context.Context, input map[string]any) (domain.Record, error) {
	if s.State() != StateReady {
		return domain.Record{}, apperrors.NewStoreUnavailable(repository.ErrStoreUnavailable)
	}

	fields, err := s.schema.Prepare(input)
	if err != nil {
		return domain.Record{}, s.validationError(err)
	}

	doc, err := s.repo.Insert(ctx, fields)
	if err != nil {
		return domain.Record{}, s.insertError(err)
	}

	record := domain.Normalize(s.schema, doc)
	s.metrics.RecordCreated(s.schema.Collection)
	s.publishCreated(ctx, doc)
	return record, nil
}

func (s *ResourceService) validationError(err error) error {
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	message := s.schema.RequiredMessage()
	for _, fe := range verrs {
		if fe.Reason != "is required" {
			message = verrs.Error()
			break
		}
	}
	return apperrors.NewValidationError(message, verrs.Details())
}

func (s *ResourceService) insertError(err error) error {
	var ce *repository.ConstraintError
	switch {
	case errors.As(err, &ce):
		if ce.Field == "" {
			return apperrors.NewConflict("record already exists", nil)
		}
		return apperrors.NewConflict(ce.Field+" already exists", map[string]any{"field": ce.Field})
	case errors.Is(err, repository.ErrStoreUnavailable):
		return apperrors.NewStoreUnavailable(err)
	default:
		s.logger.Error("insert failed", zap.Error(err))
		return apperrors.NewInternalError(err)
	}
}

func (s *ResourceService) publishCreated(ctx context.Context, doc domain.Document) {
	if s.dispatcher == nil {
		return
	}
	event := events.NewRecordCreated(s.schema.Collection, doc.ID, doc.Fields, s.now())
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("record_created handlers failed", zap.String("record_id", doc.ID), zap.Error(err))
	}
}
