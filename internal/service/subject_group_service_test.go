package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pending-subjects-api/internal/models"
	appErrors "github.com/noah-isme/pending-subjects-api/pkg/errors"
)

type groupStoreStub struct {
	byOffering map[string]models.SubjectGroup
	err        error
	requested  []string
}

func (s *groupStoreStub) FindActiveByOffering(ctx context.Context, id string) (*models.SubjectGroup, error) {
	if s.err != nil {
		return nil, s.err
	}
	g, ok := s.byOffering[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &g, nil
}

func (s *groupStoreStub) FindActiveByOfferings(ctx context.Context, ids []string) (map[string]models.SubjectGroup, error) {
	s.requested = ids
	if s.err != nil {
		return nil, s.err
	}
	out := map[string]models.SubjectGroup{}
	for _, id := range ids {
		if g, ok := s.byOffering[id]; ok {
			out[id] = g
		}
	}
	return out, nil
}

func newGroupFixture() (*SubjectGroupService, *groupStoreStub) {
	store := &groupStoreStub{byOffering: map[string]models.SubjectGroup{
		"off-1": {ID: "g-1", Name: "Languages", Code: "LAN", Active: true},
	}}
	offerings := offeringStub{known: map[string]bool{"off-1": true, "off-2": true}}
	return NewSubjectGroupService(store, offerings, nil), store
}

func TestSubjectGroupResolve(t *testing.T) {
	svc, store := newGroupFixture()
	ctx := context.Background()

	group, err := svc.Resolve(ctx, "off-1")
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, "g-1", group.ID)

	group, err = svc.Resolve(ctx, "off-2")
	require.NoError(t, err)
	assert.Nil(t, group)

	_, err = svc.Resolve(ctx, "off-9")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Resolve(ctx, "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	store.err = errors.New("timeout")
	_, err = svc.Resolve(ctx, "off-1")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestSubjectGroupResolveManyDeduplicates(t *testing.T) {
	svc, store := newGroupFixture()

	groups, err := svc.ResolveMany(context.Background(), []string{"off-1", "off-2", "off-1", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"off-1", "off-2"}, store.requested)
	assert.Len(t, groups, 1)
	assert.Equal(t, "Languages", groups["off-1"].Name)
}

func TestDisplayNameFallsBackToSubject(t *testing.T) {
	group := &models.SubjectGroup{Name: "Languages", Code: "LAN"}
	assert.Equal(t, "Languages", DisplayName(group, "English"))
	assert.Equal(t, "English", DisplayName(nil, "English"))
	assert.Equal(t, "English", DisplayName(&models.SubjectGroup{}, "English"))
	assert.Equal(t, "LAN", DisplayCode(group, "ENG"))
	assert.Equal(t, "ENG", DisplayCode(nil, "ENG"))
}

func TestAttachGroupsClearsStaleColumns(t *testing.T) {
	stale := "Old"
	details := []models.PendingRegistrationDetail{
		{SubjectName: "English", GroupName: &stale},
		{SubjectName: "Art"},
	}
	details[0].SubjectOfferingID = "off-2"
	details[1].SubjectOfferingID = "off-1"

	AttachGroups(details, map[string]models.SubjectGroup{"off-1": {ID: "g-1", Name: "Languages", Code: "LAN", DisplayOrder: 3}})

	assert.Nil(t, details[0].GroupName)
	require.NotNil(t, details[1].GroupID)
	assert.Equal(t, "g-1", *details[1].GroupID)
	assert.Equal(t, "Languages", *details[1].GroupName)
	assert.Equal(t, 3, *details[1].GroupOrder)
}
