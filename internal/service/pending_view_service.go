package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/models"
	appErrors "github.com/noah-isme/pending-subjects-api/pkg/errors"
)

type pendingViewStore interface {
	ListActiveByStudents(ctx context.Context, studentIDs []string, cycleID string) ([]models.PendingRegistrationDetail, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindCurrentForStudent(ctx context.Context, studentID string) (*models.Course, error)
	ListActiveStudents(ctx context.Context, courseID string) ([]models.CourseStudent, error)
	StudentExists(ctx context.Context, studentID string) (bool, error)
}

type groupResolver interface {
	ResolveMany(ctx context.Context, subjectOfferingIDs []string) (map[string]models.SubjectGroup, error)
}

type subjectAccessChecker interface {
	HasSubjectAccess(ctx context.Context, teacherID, subjectOfferingID string) (bool, error)
}

// PendingViewConfig tunes consolidation and caching.
type PendingViewConfig struct {
	Policy   GroupGradePolicy
	CacheTTL time.Duration

	// InvalidationDelay is the wait before the second delete of an invalidated view.
	// Zero uses the default; a negative value disables the second delete.
	InvalidationDelay time.Duration
}

const defaultInvalidationDelay = 500 * time.Millisecond

// PendingViewService builds consolidated per-student and per-course views.
type PendingViewService struct {
	repo      pendingViewStore
	courses   courseReader
	groups    groupResolver
	offerings subjectAccessChecker
	cache     *CacheService
	metrics   *MetricsService
	config    PendingViewConfig
	logger    *zap.Logger
}

// NewPendingViewService wires the view service. cache and metrics may be nil.
func NewPendingViewService(repo pendingViewStore, courses courseReader, groups groupResolver, offerings subjectAccessChecker, cache *CacheService, metrics *MetricsService, config PendingViewConfig, logger *zap.Logger) *PendingViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Policy == "" {
		config.Policy = GroupGradeMinimum
	}
	if config.InvalidationDelay == 0 {
		config.InvalidationDelay = defaultInvalidationDelay
	}
	return &PendingViewService{repo: repo, courses: courses, groups: groups, offerings: offerings, cache: cache, metrics: metrics, config: config, logger: logger}
}

func pendingViewCacheKey(cycleID, studentID string) string {
	return fmt.Sprintf("pending:view:%s:%s", cycleID, studentID)
}

func pendingViewCachePattern(cycleID string) string {
	if cycleID == "" {
		return "pending:view:*"
	}
	return fmt.Sprintf("pending:view:%s:*", cycleID)
}

// GroupedView consolidates a student's active registrations for one cycle.
// Teachers only see the offerings they teach and never read or fill the shared cache.
// The boolean reports whether the result came from cache.
func (s *PendingViewService) GroupedView(ctx context.Context, studentID, cycleID string, actor *models.JWTClaims) (*dto.GroupedViewResponse, bool, error) {
	if err := requireViewer(actor); err != nil {
		return nil, false, err
	}
	if studentID == "" || cycleID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "studentId and cycleId are required")
	}

	cacheable := !actor.IsTeacher()
	key := pendingViewCacheKey(cycleID, studentID)
	if cacheable {
		var cached dto.GroupedViewResponse
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, true, nil
		}
	}

	exists, err := s.courses.StudentExists(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !exists {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	details, err := s.repo.ListActiveByStudents(ctx, []string{studentID}, cycleID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending registrations")
	}
	details, err = s.scopeToActor(ctx, details, actor)
	if err != nil {
		return nil, false, err
	}
	items, err := s.consolidate(ctx, details)
	if err != nil {
		return nil, false, err
	}

	view := &dto.GroupedViewResponse{
		StudentID:  studentID,
		CycleID:    cycleID,
		Items:      items,
		Statistics: Aggregate(items),
	}
	course, err := s.courses.FindCurrentForStudent(ctx, studentID)
	switch {
	case err == nil:
		view.Course = &dto.CourseSummary{ID: course.ID, Name: course.Name, Year: course.Year}
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current course")
	}

	s.metrics.ObserveViewItems(len(items))
	if cacheable {
		_ = s.cache.Set(ctx, key, view, s.config.CacheTTL)
	}
	return view, false, nil
}

// CourseView returns the grouped view of every actively enrolled student who owes subjects,
// ordered by surname.
func (s *PendingViewService) CourseView(ctx context.Context, courseID, cycleID string, actor *models.JWTClaims) (*dto.CourseViewResponse, error) {
	if err := requireViewer(actor); err != nil {
		return nil, err
	}
	if courseID == "" || cycleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId and cycleId are required")
	}
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	students, err := s.courses.ListActiveStudents(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course students")
	}
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	details, err := s.repo.ListActiveByStudents(ctx, ids, cycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending registrations")
	}
	details, err = s.scopeToActor(ctx, details, actor)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string][]models.PendingRegistrationDetail, len(students))
	for _, d := range details {
		byStudent[d.StudentID] = append(byStudent[d.StudentID], d)
	}

	resp := &dto.CourseViewResponse{CourseID: courseID, CycleID: cycleID, Students: []dto.CourseViewEntry{}}
	for _, st := range students {
		own := byStudent[st.ID]
		if len(own) == 0 {
			continue
		}
		items, err := s.consolidate(ctx, own)
		if err != nil {
			return nil, err
		}
		resp.Students = append(resp.Students, dto.CourseViewEntry{
			StudentID:  st.ID,
			FirstName:  st.FirstName,
			LastName:   st.LastName,
			DocumentID: st.DocumentID,
			Items:      items,
			Statistics: Aggregate(items),
		})
	}
	return resp, nil
}

// InvalidateStudent drops the cached grouped view after a member mutation. A second delete
// runs after InvalidationDelay so a read that started before the mutation cannot leave its
// stale view cached for the whole TTL.
func (s *PendingViewService) InvalidateStudent(ctx context.Context, studentID, cycleID string) {
	key := pendingViewCacheKey(cycleID, studentID)
	s.dropView(ctx, key)
	if s.config.InvalidationDelay > 0 && s.cache.Enabled() {
		time.AfterFunc(s.config.InvalidationDelay, func() {
			s.dropView(context.Background(), key)
		})
	}
}

// InvalidateCycle drops every cached grouped view of a cycle, or of all cycles when cycleID
// is empty. Group memberships are maintained outside this service, so managers call it after
// regrouping subjects.
func (s *PendingViewService) InvalidateCycle(ctx context.Context, cycleID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !isManager(actor) {
		return appErrors.ErrForbidden
	}
	pattern := pendingViewCachePattern(cycleID)
	if err := s.cache.InvalidatePattern(ctx, pattern); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate pending views")
	}
	s.logger.Info("pending views invalidated", zap.String("pattern", pattern), zap.String("actor_id", actor.UserID))
	return nil
}

func (s *PendingViewService) dropView(ctx context.Context, key string) {
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Warn("pending view left in cache", zap.String("key", key), zap.Error(err))
	}
}

func (s *PendingViewService) scopeToActor(ctx context.Context, details []models.PendingRegistrationDetail, actor *models.JWTClaims) ([]models.PendingRegistrationDetail, error) {
	if !actor.IsTeacher() {
		return details, nil
	}
	allowed := make(map[string]bool)
	scoped := make([]models.PendingRegistrationDetail, 0, len(details))
	for _, d := range details {
		ok, seen := allowed[d.SubjectOfferingID]
		if !seen {
			var err error
			ok, err = s.offerings.HasSubjectAccess(ctx, actor.UserID, d.SubjectOfferingID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify subject access")
			}
			allowed[d.SubjectOfferingID] = ok
		}
		if ok {
			scoped = append(scoped, d)
		}
	}
	return scoped, nil
}

func (s *PendingViewService) consolidate(ctx context.Context, details []models.PendingRegistrationDetail) ([]dto.PendingItem, error) {
	if s.groups != nil && len(details) > 0 {
		ids := make([]string, len(details))
		for i, d := range details {
			ids[i] = d.SubjectOfferingID
		}
		groups, err := s.groups.ResolveMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		AttachGroups(details, groups)
	}
	return PartitionItems(details, s.config.Policy), nil
}

func requireViewer(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !isManager(actor) && !actor.IsTeacher() {
		return appErrors.ErrForbidden
	}
	return nil
}
