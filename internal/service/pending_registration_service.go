package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/models"
	"github.com/noah-isme/pending-subjects-api/internal/repository"
	appErrors "github.com/noah-isme/pending-subjects-api/pkg/errors"
)

type pendingStore interface {
	ExistsActive(ctx context.Context, studentID, subjectOfferingID, cycleID string) (bool, error)
	Create(ctx context.Context, reg *models.PendingRegistration) error
	CreateMany(ctx context.Context, regs []*models.PendingRegistration) error
	FindByID(ctx context.Context, id string) (*models.PendingRegistration, error)
	FindDetailByID(ctx context.Context, id string) (*models.PendingRegistrationDetail, error)
	List(ctx context.Context, filter models.PendingRegistrationFilter) ([]models.PendingRegistrationDetail, int, error)
	ApplyChange(ctx context.Context, change models.FieldChange) (*models.PendingRegistration, bool, error)
	SoftDelete(ctx context.Context, id, editorID string, at time.Time) (*models.PendingRegistration, error)
}

type pendingAuditReader interface {
	ListByRegistration(ctx context.Context, registrationID string) ([]models.PendingAuditEntry, error)
}

type subjectOfferingReader interface {
	FindByID(ctx context.Context, id string) (*models.SubjectOffering, error)
	HasSubjectAccess(ctx context.Context, teacherID, subjectOfferingID string) (bool, error)
}

type studentReader interface {
	StudentExists(ctx context.Context, studentID string) (bool, error)
}

type pendingViewInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID, cycleID string)
}

// PendingRegistrationService owns the lifecycle of pending registrations.
type PendingRegistrationService struct {
	repo      pendingStore
	audit     pendingAuditReader
	offerings subjectOfferingReader
	students  studentReader
	views     pendingViewInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPendingRegistrationService wires the service. views and metrics may be nil.
func NewPendingRegistrationService(
	repo pendingStore,
	audit pendingAuditReader,
	offerings subjectOfferingReader,
	students studentReader,
	views pendingViewInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *PendingRegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PendingRegistrationService{
		repo:      repo,
		audit:     audit,
		offerings: offerings,
		students:  students,
		views:     views,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a pending registration for a student.
func (s *PendingRegistrationService) Create(ctx context.Context, req dto.CreatePendingRequest, actor *models.JWTClaims) (*models.PendingRegistrationDetail, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	req.InitialGaps = strings.TrimSpace(req.InitialGaps)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pending registration payload")
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}
	if err := s.ensureOffering(ctx, req.SubjectOfferingID); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsActive(ctx, req.StudentID, req.SubjectOfferingID, req.CycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending registration")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active pending registration for this subject and cycle")
	}

	reg := &models.PendingRegistration{
		StudentID:         req.StudentID,
		SubjectOfferingID: req.SubjectOfferingID,
		CycleID:           req.CycleID,
		InitialGaps:       req.InitialGaps,
		CreatedBy:         actor.UserID,
		CreatedAt:         s.now(),
	}
	err = s.repo.Create(ctx, reg)
	s.metrics.RecordPendingMutation("create", err)
	if err != nil {
		return nil, mapPendingStoreError(err, "failed to create pending registration")
	}

	s.logger.Info("pending registration created",
		zap.String("registration_id", reg.ID),
		zap.String("student_id", reg.StudentID),
		zap.String("actor_id", actor.UserID))
	s.invalidate(ctx, reg.StudentID, reg.CycleID)
	return s.loadDetail(ctx, reg.ID)
}

// BulkAssign opens several registrations for one student atomically.
func (s *PendingRegistrationService) BulkAssign(ctx context.Context, req dto.BulkAssignRequest, actor *models.JWTClaims) ([]models.PendingRegistrationDetail, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	for i := range req.Items {
		req.Items[i].InitialGaps = strings.TrimSpace(req.Items[i].InitialGaps)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk assignment payload")
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		if _, dup := seen[item.SubjectOfferingID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject offering %s appears more than once", item.SubjectOfferingID))
		}
		seen[item.SubjectOfferingID] = struct{}{}
		if err := s.ensureOffering(ctx, item.SubjectOfferingID); err != nil {
			return nil, err
		}
		exists, err := s.repo.ExistsActive(ctx, req.StudentID, item.SubjectOfferingID, req.CycleID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending registration")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("subject offering %s already has an active pending registration", item.SubjectOfferingID))
		}
	}

	now := s.now()
	regs := make([]*models.PendingRegistration, len(req.Items))
	for i, item := range req.Items {
		regs[i] = &models.PendingRegistration{
			StudentID:         req.StudentID,
			SubjectOfferingID: item.SubjectOfferingID,
			CycleID:           req.CycleID,
			InitialGaps:       item.InitialGaps,
			CreatedBy:         actor.UserID,
			CreatedAt:         now,
		}
	}
	err := s.repo.CreateMany(ctx, regs)
	s.metrics.RecordPendingMutation("bulk_assign", err)
	if err != nil {
		return nil, mapPendingStoreError(err, "failed to assign pending registrations")
	}

	s.logger.Info("pending registrations assigned",
		zap.String("student_id", req.StudentID),
		zap.Int("count", len(regs)),
		zap.String("actor_id", actor.UserID))
	s.invalidate(ctx, req.StudentID, req.CycleID)

	details := make([]models.PendingRegistrationDetail, 0, len(regs))
	for _, reg := range regs {
		detail, err := s.loadDetail(ctx, reg.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

// Update writes one field. Validation happens before the row is touched.
func (s *PendingRegistrationService) Update(ctx context.Context, id string, req dto.UpdatePendingFieldRequest, actor *models.JWTClaims) (*models.PendingRegistrationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	field, err := ParseField(req.Field)
	if err != nil {
		return nil, err
	}
	value, err := ParseFieldValue(field, req.Value)
	if err != nil {
		return nil, err
	}

	current, err := s.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeEdit(ctx, actor, current.SubjectOfferingID); err != nil {
		return nil, err
	}

	change := models.FieldChange{
		RegistrationID:  id,
		Field:           field,
		Value:           value,
		EditorID:        actor.UserID,
		At:              s.now(),
		ExpectedVersion: current.Version,
	}
	if req.Version != nil {
		change.ExpectedVersion = *req.Version
	}
	_, changed, err := s.repo.ApplyChange(ctx, change)
	s.metrics.RecordPendingMutation("update", err)
	if err != nil {
		return nil, mapPendingStoreError(err, "failed to update pending registration")
	}
	if changed {
		s.logger.Info("pending registration updated",
			zap.String("registration_id", id),
			zap.String("field", string(field)),
			zap.String("actor_id", actor.UserID))
		s.invalidate(ctx, current.StudentID, current.CycleID)
	}
	return s.loadDetail(ctx, id)
}

// SoftDelete marks an active registration inactive. Values stay for reporting.
func (s *PendingRegistrationService) SoftDelete(ctx context.Context, id string, actor *models.JWTClaims) (*models.PendingRegistrationDetail, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	reg, err := s.repo.SoftDelete(ctx, id, actor.UserID, s.now())
	s.metrics.RecordPendingMutation("soft_delete", err)
	if err != nil {
		return nil, mapPendingStoreError(err, "failed to delete pending registration")
	}
	s.logger.Info("pending registration deactivated",
		zap.String("registration_id", id),
		zap.String("actor_id", actor.UserID))
	s.invalidate(ctx, reg.StudentID, reg.CycleID)
	return s.loadDetail(ctx, id)
}

// Get returns a registration with display data.
func (s *PendingRegistrationService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.PendingRegistrationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeEdit(ctx, actor, detail.SubjectOfferingID); err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns registrations for flat table views. Teachers only see offerings they teach.
func (s *PendingRegistrationService) List(ctx context.Context, query dto.PendingListQuery, actor *models.JWTClaims) ([]models.PendingRegistrationDetail, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	state, err := parseStateFilter(query.State)
	if err != nil {
		return nil, nil, err
	}
	filter := models.PendingRegistrationFilter{
		ProfessorID:       query.ProfessorID,
		SubjectOfferingID: query.SubjectOfferingID,
		CourseID:          query.CourseID,
		StudentID:         query.StudentID,
		CycleID:           query.CycleID,
		State:             state,
		Page:              query.Page,
		PageSize:          query.PageSize,
		SortBy:            query.SortBy,
		SortOrder:         query.SortOrder,
	}
	switch {
	case actor.IsTeacher():
		filter.ProfessorID = actor.UserID
	case !isManager(actor):
		return nil, nil, appErrors.ErrForbidden
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending registrations")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// History returns the audit trail of a registration, oldest first.
func (s *PendingRegistrationService) History(ctx context.Context, id string, actor *models.JWTClaims) ([]models.PendingAuditEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	reg, err := s.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeEdit(ctx, actor, reg.SubjectOfferingID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByRegistration(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending registration history")
	}
	return entries, nil
}

func (s *PendingRegistrationService) authorizeEdit(ctx context.Context, actor *models.JWTClaims, subjectOfferingID string) error {
	if isManager(actor) {
		return nil
	}
	if !actor.IsTeacher() {
		return appErrors.ErrForbidden
	}
	allowed, err := s.offerings.HasSubjectAccess(ctx, actor.UserID, subjectOfferingID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify subject access")
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "teacher is not assigned to this subject")
	}
	return nil
}

func (s *PendingRegistrationService) ensureStudent(ctx context.Context, studentID string) error {
	exists, err := s.students.StudentExists(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !exists {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil
}

func (s *PendingRegistrationService) ensureOffering(ctx context.Context, id string) error {
	if _, err := s.offerings.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject offering %s not found", id))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject offering")
	}
	return nil
}

func (s *PendingRegistrationService) findRegistration(ctx context.Context, id string) (*models.PendingRegistration, error) {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapPendingStoreError(err, "failed to load pending registration")
	}
	return reg, nil
}

func (s *PendingRegistrationService) loadDetail(ctx context.Context, id string) (*models.PendingRegistrationDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, mapPendingStoreError(err, "failed to load pending registration")
	}
	return detail, nil
}

func (s *PendingRegistrationService) invalidate(ctx context.Context, studentID, cycleID string) {
	if s.views != nil {
		s.views.InvalidateStudent(ctx, studentID, cycleID)
	}
}

func mapPendingStoreError(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "pending registration not found")
	case errors.Is(err, repository.ErrDuplicateActive):
		return appErrors.Clone(appErrors.ErrConflict, "student already has an active pending registration for this subject and cycle")
	case errors.Is(err, repository.ErrVersionConflict):
		return appErrors.Clone(appErrors.ErrConflict, "pending registration was modified by another user")
	case errors.Is(err, repository.ErrRegistrationInactive):
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "pending registration is inactive")
	case errors.Is(err, repository.ErrUnknownField):
		return appErrors.Clone(appErrors.ErrInvalidField, "field cannot be updated")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func parseStateFilter(raw string) (models.RegistrationState, error) {
	switch state := models.RegistrationState(strings.ToLower(strings.TrimSpace(raw))); state {
	case "":
		return models.RegistrationStateActive, nil
	case models.RegistrationStateActive, models.RegistrationStateInactive, models.RegistrationStateAll:
		return state, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "state must be active, inactive or all")
}

func isManager(actor *models.JWTClaims) bool {
	if actor == nil {
		return false
	}
	for _, role := range models.ManagerRoles {
		if actor.Role == role {
			return true
		}
	}
	return false
}

func requireManager(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !isManager(actor) {
		return appErrors.ErrForbidden
	}
	return nil
}
