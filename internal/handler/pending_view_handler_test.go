package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/middleware"
	"github.com/noah-isme/pending-subjects-api/internal/models"
	appErrors "github.com/noah-isme/pending-subjects-api/pkg/errors"
)

type pendingViewServiceMock struct {
	hit         bool
	err         error
	lastCycle   string
	lastTarget  string
	invalidated []string
}

func (m *pendingViewServiceMock) GroupedView(ctx context.Context, studentID, cycleID string, actor *models.JWTClaims) (*dto.GroupedViewResponse, bool, error) {
	m.lastTarget, m.lastCycle = studentID, cycleID
	if m.err != nil {
		return nil, false, m.err
	}
	return &dto.GroupedViewResponse{StudentID: studentID, CycleID: cycleID, Items: []dto.PendingItem{}}, m.hit, nil
}

func (m *pendingViewServiceMock) CourseView(ctx context.Context, courseID, cycleID string, actor *models.JWTClaims) (*dto.CourseViewResponse, error) {
	m.lastTarget, m.lastCycle = courseID, cycleID
	if m.err != nil {
		return nil, m.err
	}
	return &dto.CourseViewResponse{CourseID: courseID, CycleID: cycleID}, nil
}

func (m *pendingViewServiceMock) InvalidateCycle(ctx context.Context, cycleID string, actor *models.JWTClaims) error {
	if m.err != nil {
		return m.err
	}
	m.invalidated = append(m.invalidated, cycleID)
	return nil
}

func TestPendingViewHandlerStudentReportsCacheHit(t *testing.T) {
	mockSvc := &pendingViewServiceMock{hit: true}
	handler := NewPendingViewHandler(mockSvc)

	c, w := newPendingTestContext(http.MethodGet, "/students/stu-1/pending-view?cycleId=2024", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.Student(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", mockSvc.lastTarget)
	assert.Equal(t, "2024", mockSvc.lastCycle)

	var body struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body.Meta["cache_hit"])
}

func TestPendingViewHandlerRequiresCycle(t *testing.T) {
	mockSvc := &pendingViewServiceMock{}
	handler := NewPendingViewHandler(mockSvc)

	c, w := newPendingTestContext(http.MethodGet, "/students/stu-1/pending-view", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.Student(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newPendingTestContext(http.MethodGet, "/courses/c-1/pending-view", nil)
	c.Params = gin.Params{{Key: "id", Value: "c-1"}}
	handler.Course(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.lastTarget)
}

func TestPendingViewHandlerCourse(t *testing.T) {
	mockSvc := &pendingViewServiceMock{}
	handler := NewPendingViewHandler(mockSvc)

	c, w := newPendingTestContext(http.MethodGet, "/courses/c-1/pending-view?cycleId=2024", nil)
	c.Params = gin.Params{{Key: "id", Value: "c-1"}}
	handler.Course(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c-1", mockSvc.lastTarget)
	assert.Contains(t, w.Body.String(), `"student_count":0`)

	mockSvc.err = appErrors.Clone(appErrors.ErrNotFound, "course not found")
	c, w = newPendingTestContext(http.MethodGet, "/courses/c-9/pending-view?cycleId=2024", nil)
	c.Params = gin.Params{{Key: "id", Value: "c-9"}}
	handler.Course(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPendingViewHandlerInvalidate(t *testing.T) {
	mockSvc := &pendingViewServiceMock{}
	handler := NewPendingViewHandler(mockSvc)

	c, w := newPendingTestContext(http.MethodPost, "/pending-views/invalidate?cycleId=2024", nil)
	handler.Invalidate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"2024"}, mockSvc.invalidated)

	mockSvc.err = appErrors.ErrForbidden
	c, w = newPendingTestContext(http.MethodPost, "/pending-views/invalidate", nil)
	handler.Invalidate(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

type subjectGroupResolverMock struct {
	group *models.SubjectGroup
	err   error
}

func (m subjectGroupResolverMock) Resolve(ctx context.Context, id string) (*models.SubjectGroup, error) {
	return m.group, m.err
}

func TestSubjectGroupHandlerResolve(t *testing.T) {
	handler := NewSubjectGroupHandler(subjectGroupResolverMock{group: &models.SubjectGroup{ID: "g-1", Name: "Sciences"}})

	c, w := newPendingTestContext(http.MethodGet, "/subject-offerings/off-1/group", nil)
	c.Params = gin.Params{{Key: "id", Value: "off-1"}}
	handler.Resolve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subjectOfferingId":"off-1"`)
	assert.Contains(t, w.Body.String(), `"Sciences"`)

	handler = NewSubjectGroupHandler(subjectGroupResolverMock{})
	c, w = newPendingTestContext(http.MethodGet, "/subject-offerings/off-2/group", nil)
	c.Params = gin.Params{{Key: "id", Value: "off-2"}}
	handler.Resolve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"group":null`)
}

type pingerStub struct{ err error }

func (p pingerStub) PingContext(ctx context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	handler := NewMetricsHandler(nil, pingerStub{})
	c, w := newPendingTestContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)

	handler = NewMetricsHandler(nil, pingerStub{err: sql.ErrConnDone})
	c, w = newPendingTestContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	c, w = newPendingTestContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestClaimsFromContext(t *testing.T) {
	c, _ := newPendingTestContext(http.MethodGet, "/", nil)
	claims := claimsFromContext(c)
	require.NotNil(t, claims)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	c.Set(middleware.ContextUserKey, "garbage")
	assert.Nil(t, claimsFromContext(c))
}
