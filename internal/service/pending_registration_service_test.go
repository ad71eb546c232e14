package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/models"
	"github.com/noah-isme/pending-subjects-api/internal/repository"
	appErrors "github.com/noah-isme/pending-subjects-api/pkg/errors"
)

type pendingStoreStub struct {
	regs        map[string]*models.PendingRegistration
	createErr   error
	applyErr    error
	listFilter  models.PendingRegistrationFilter
	createdMany [][]*models.PendingRegistration
	changes     []models.FieldChange
	seq         int
	beforeApply func(reg *models.PendingRegistration)
}

func newPendingStoreStub() *pendingStoreStub {
	return &pendingStoreStub{regs: map[string]*models.PendingRegistration{}}
}

func (s *pendingStoreStub) ExistsActive(ctx context.Context, studentID, subjectOfferingID, cycleID string) (bool, error) {
	for _, r := range s.regs {
		if r.StudentID == studentID && r.SubjectOfferingID == subjectOfferingID && r.CycleID == cycleID && r.State == models.RegistrationStateActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *pendingStoreStub) Create(ctx context.Context, reg *models.PendingRegistration) error {
	return s.CreateMany(ctx, []*models.PendingRegistration{reg})
}

func (s *pendingStoreStub) CreateMany(ctx context.Context, regs []*models.PendingRegistration) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.createdMany = append(s.createdMany, regs)
	for _, reg := range regs {
		s.seq++
		reg.ID = fmt.Sprintf("reg-%d", s.seq)
		reg.State = models.RegistrationStateActive
		reg.Version = 1
		copied := *reg
		s.regs[reg.ID] = &copied
	}
	return nil
}

func (s *pendingStoreStub) FindByID(ctx context.Context, id string) (*models.PendingRegistration, error) {
	reg, ok := s.regs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *reg
	return &copied, nil
}

func (s *pendingStoreStub) FindDetailByID(ctx context.Context, id string) (*models.PendingRegistrationDetail, error) {
	reg, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.PendingRegistrationDetail{PendingRegistration: *reg, SubjectName: "Math"}, nil
}

func (s *pendingStoreStub) List(ctx context.Context, filter models.PendingRegistrationFilter) ([]models.PendingRegistrationDetail, int, error) {
	s.listFilter = filter
	return []models.PendingRegistrationDetail{}, 0, nil
}

func (s *pendingStoreStub) ApplyChange(ctx context.Context, change models.FieldChange) (*models.PendingRegistration, bool, error) {
	s.changes = append(s.changes, change)
	if s.applyErr != nil {
		return nil, false, s.applyErr
	}
	reg, ok := s.regs[change.RegistrationID]
	if !ok {
		return nil, false, sql.ErrNoRows
	}
	if s.beforeApply != nil {
		s.beforeApply(reg)
	}
	if reg.State != models.RegistrationStateActive {
		return nil, false, repository.ErrRegistrationInactive
	}
	if change.ExpectedVersion != 0 && change.ExpectedVersion != reg.Version {
		return nil, false, repository.ErrVersionConflict
	}
	if change.Field == models.FieldState {
		reg.State = models.RegistrationState(*change.Value.Text)
	} else if p, ok := change.Field.Period(); ok {
		reg.SetPeriodValue(p, change.Value.Period)
	} else if change.Field == models.FieldFinalGrade {
		reg.FinalGrade = change.Value.Grade
	}
	reg.Version++
	copied := *reg
	return &copied, true, nil
}

func (s *pendingStoreStub) SoftDelete(ctx context.Context, id, editorID string, at time.Time) (*models.PendingRegistration, error) {
	inactive := string(models.RegistrationStateInactive)
	reg, _, err := s.ApplyChange(ctx, models.FieldChange{RegistrationID: id, Field: models.FieldState, Value: models.FieldValue{Text: &inactive}, EditorID: editorID, At: at})
	return reg, err
}

type pendingAuditStub struct {
	entries []models.PendingAuditEntry
}

func (s pendingAuditStub) ListByRegistration(ctx context.Context, registrationID string) ([]models.PendingAuditEntry, error) {
	return s.entries, nil
}

type offeringStub struct {
	known  map[string]bool
	access map[string]bool
}

func (s offeringStub) FindByID(ctx context.Context, id string) (*models.SubjectOffering, error) {
	if !s.known[id] {
		return nil, sql.ErrNoRows
	}
	return &models.SubjectOffering{ID: id, Name: "Subject " + id}, nil
}

func (s offeringStub) HasSubjectAccess(ctx context.Context, teacherID, subjectOfferingID string) (bool, error) {
	return s.access[teacherID+"/"+subjectOfferingID], nil
}

type studentStub struct {
	known map[string]bool
}

func (s studentStub) StudentExists(ctx context.Context, studentID string) (bool, error) {
	return s.known[studentID], nil
}

type invalidatorStub struct {
	calls []string
}

func (s *invalidatorStub) InvalidateStudent(ctx context.Context, studentID, cycleID string) {
	s.calls = append(s.calls, cycleID+"/"+studentID)
}

var (
	adminActor   = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	teacherActor = &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
)

type pendingFixture struct {
	svc   *PendingRegistrationService
	store *pendingStoreStub
	views *invalidatorStub
}

func newPendingFixture() pendingFixture {
	store := newPendingStoreStub()
	views := &invalidatorStub{}
	offerings := offeringStub{
		known:  map[string]bool{"off-1": true, "off-2": true},
		access: map[string]bool{"teacher-1/off-1": true},
	}
	svc := NewPendingRegistrationService(store, pendingAuditStub{}, offerings, studentStub{known: map[string]bool{"stu-1": true}}, views, NewMetricsService(), nil, zap.NewNop())
	return pendingFixture{svc: svc, store: store, views: views}
}

func createReq(offering string) dto.CreatePendingRequest {
	return dto.CreatePendingRequest{StudentID: "stu-1", SubjectOfferingID: offering, CycleID: "2024", InitialGaps: "fractions"}
}

func TestPendingServiceCreateRejectsDuplicateActive(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()

	detail, err := f.svc.Create(ctx, createReq("off-1"), adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStateActive, detail.State)
	assert.Equal(t, []string{"2024/stu-1"}, f.views.calls)

	_, err = f.svc.Create(ctx, createReq("off-1"), adminActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestPendingServiceCreateMapsStoreUniqueViolation(t *testing.T) {
	f := newPendingFixture()
	f.store.createErr = fmt.Errorf("create pending registration: %w", repository.ErrDuplicateActive)
	_, err := f.svc.Create(context.Background(), createReq("off-1"), adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestPendingServiceCreateValidation(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()

	req := createReq("off-1")
	req.InitialGaps = "   "
	_, err := f.svc.Create(ctx, req, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Create(ctx, createReq("missing"), adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	req = createReq("off-1")
	req.StudentID = "ghost"
	_, err = f.svc.Create(ctx, req, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Create(ctx, createReq("off-1"), teacherActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Create(ctx, createReq("off-1"), nil)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
	assert.Empty(t, f.store.regs)
}

func TestPendingServiceBulkAssign(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()

	details, err := f.svc.BulkAssign(ctx, dto.BulkAssignRequest{
		StudentID: "stu-1",
		CycleID:   "2024",
		Items: []dto.BulkAssignItem{
			{SubjectOfferingID: "off-1", InitialGaps: "a"},
			{SubjectOfferingID: "off-2", InitialGaps: "b"},
		},
	}, adminActor)
	require.NoError(t, err)
	assert.Len(t, details, 2)
	require.Len(t, f.store.createdMany, 1)
	assert.Len(t, f.store.createdMany[0], 2)
}

func TestPendingServiceBulkAssignRejectsBeforeWriting(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()

	_, err := f.svc.BulkAssign(ctx, dto.BulkAssignRequest{
		StudentID: "stu-1",
		CycleID:   "2024",
		Items: []dto.BulkAssignItem{
			{SubjectOfferingID: "off-1", InitialGaps: "a"},
			{SubjectOfferingID: "off-1", InitialGaps: "b"},
		},
	}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Create(ctx, createReq("off-2"), adminActor)
	require.NoError(t, err)
	_, err = f.svc.BulkAssign(ctx, dto.BulkAssignRequest{
		StudentID: "stu-1",
		CycleID:   "2024",
		Items: []dto.BulkAssignItem{
			{SubjectOfferingID: "off-1", InitialGaps: "a"},
			{SubjectOfferingID: "off-2", InitialGaps: "b"},
		},
	}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Len(t, f.store.createdMany, 1)
}

func TestPendingServiceUpdate(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()
	created, err := f.svc.Create(ctx, createReq("off-1"), adminActor)
	require.NoError(t, err)

	detail, err := f.svc.Update(ctx, created.ID, dto.UpdatePendingFieldRequest{Field: "march", Value: json.RawMessage(`"AA"`)}, teacherActor)
	require.NoError(t, err)
	assert.Equal(t, models.PeriodValueAA, detail.PeriodValue(models.PeriodMarch))
	assert.Equal(t, 2, detail.Version)
	require.Len(t, f.store.changes, 1)
	assert.Equal(t, "teacher-1", f.store.changes[0].EditorID)
	assert.Len(t, f.views.calls, 2)
}

func TestPendingServiceUpdateValidatesBeforeWrite(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()
	created, err := f.svc.Create(ctx, createReq("off-1"), adminActor)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, created.ID, dto.UpdatePendingFieldRequest{Field: "created_by", Value: json.RawMessage(`"x"`)}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidField))

	_, err = f.svc.Update(ctx, created.ID, dto.UpdatePendingFieldRequest{Field: "finalGrade", Value: json.RawMessage(`12`)}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidValue))

	_, err = f.svc.Update(ctx, created.ID, dto.UpdatePendingFieldRequest{Field: "july", Value: json.RawMessage(`"maybe"`)}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidValue))

	assert.Empty(t, f.store.changes)
}

func TestPendingServiceUpdateErrors(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()
	created, err := f.svc.Create(ctx, createReq("off-2"), adminActor)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, "missing", dto.UpdatePendingFieldRequest{Field: "march", Value: json.RawMessage(`"AA"`)}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Update(ctx, created.ID, dto.UpdatePendingFieldRequest{Field: "march", Value: json.RawMessage(`"AA"`)}, teacherActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	stale := 5
	_, err = f.svc.Update(ctx, created.ID, dto.UpdatePendingFieldRequest{Field: "march", Value: json.RawMessage(`"AA"`), Version: &stale}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	f.store.applyErr = errors.New("connection reset")
	_, err = f.svc.Update(ctx, created.ID, dto.UpdatePendingFieldRequest{Field: "march", Value: json.RawMessage(`"AA"`)}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestPendingServiceUpdateWithoutVersionDetectsConcurrentEdit(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()
	created, err := f.svc.Create(ctx, createReq("off-1"), adminActor)
	require.NoError(t, err)

	f.store.beforeApply = func(reg *models.PendingRegistration) {
		reg.Version++
	}
	_, err = f.svc.Update(ctx, created.ID, dto.UpdatePendingFieldRequest{Field: "july", Value: json.RawMessage(`"CCA"`)}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	require.Len(t, f.store.changes, 1)
	assert.Equal(t, 1, f.store.changes[0].ExpectedVersion)
	assert.Len(t, f.views.calls, 1)
}

func TestPendingServiceSoftDeleteKeepsValuesAndFiltersList(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()
	created, err := f.svc.Create(ctx, createReq("off-1"), adminActor)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, created.ID, dto.UpdatePendingFieldRequest{Field: "finalGrade", Value: json.RawMessage(`6`)}, adminActor)
	require.NoError(t, err)

	deleted, err := f.svc.SoftDelete(ctx, created.ID, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStateInactive, deleted.State)
	require.NotNil(t, deleted.FinalGrade)
	assert.Equal(t, 6, *deleted.FinalGrade)

	_, err = f.svc.SoftDelete(ctx, created.ID, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	_, err = f.svc.SoftDelete(ctx, created.ID, teacherActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestPendingServiceListStateAndTeacherScope(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()

	_, page, err := f.svc.List(ctx, dto.PendingListQuery{}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStateActive, f.store.listFilter.State)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = f.svc.List(ctx, dto.PendingListQuery{State: "all", ProfessorID: "someone"}, teacherActor)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStateAll, f.store.listFilter.State)
	assert.Equal(t, "teacher-1", f.store.listFilter.ProfessorID)

	_, _, err = f.svc.List(ctx, dto.PendingListQuery{State: "archived"}, adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestPendingServiceHistory(t *testing.T) {
	f := newPendingFixture()
	ctx := context.Background()
	created, err := f.svc.Create(ctx, createReq("off-1"), adminActor)
	require.NoError(t, err)

	_, err = f.svc.History(ctx, "missing", adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	entries, err := f.svc.History(ctx, created.ID, teacherActor)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
