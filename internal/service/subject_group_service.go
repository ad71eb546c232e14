package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/pending-subjects-api/internal/models"
	appErrors "github.com/noah-isme/pending-subjects-api/pkg/errors"
)

type subjectGroupStore interface {
	FindActiveByOffering(ctx context.Context, subjectOfferingID string) (*models.SubjectGroup, error)
	FindActiveByOfferings(ctx context.Context, subjectOfferingIDs []string) (map[string]models.SubjectGroup, error)
}

type offeringFinder interface {
	FindByID(ctx context.Context, id string) (*models.SubjectOffering, error)
}

// SubjectGroupService maps subject offerings to their active group.
type SubjectGroupService struct {
	repo      subjectGroupStore
	offerings offeringFinder
	logger    *zap.Logger
}

// NewSubjectGroupService constructs the resolver.
func NewSubjectGroupService(repo subjectGroupStore, offerings offeringFinder, logger *zap.Logger) *SubjectGroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectGroupService{repo: repo, offerings: offerings, logger: logger}
}

// Resolve returns the active group of an offering, or nil when it is ungrouped.
func (s *SubjectGroupService) Resolve(ctx context.Context, subjectOfferingID string) (*models.SubjectGroup, error) {
	if subjectOfferingID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectOfferingId is required")
	}
	if _, err := s.offerings.FindByID(ctx, subjectOfferingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject offering")
	}
	group, err := s.repo.FindActiveByOffering(ctx, subjectOfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve subject group")
	}
	return group, nil
}

// ResolveMany resolves several offerings; ungrouped ones are absent from the result.
func (s *SubjectGroupService) ResolveMany(ctx context.Context, subjectOfferingIDs []string) (map[string]models.SubjectGroup, error) {
	unique := make([]string, 0, len(subjectOfferingIDs))
	seen := make(map[string]struct{}, len(subjectOfferingIDs))
	for _, id := range subjectOfferingIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	groups, err := s.repo.FindActiveByOfferings(ctx, unique)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve subject groups")
	}
	return groups, nil
}

// DisplayName returns the group's name when grouped, otherwise the subject's own name.
func DisplayName(group *models.SubjectGroup, subjectName string) string {
	if group != nil && group.Name != "" {
		return group.Name
	}
	return subjectName
}

// DisplayCode returns the group's code when grouped, otherwise the subject's own code.
func DisplayCode(group *models.SubjectGroup, subjectCode string) string {
	if group != nil && group.Code != "" {
		return group.Code
	}
	return subjectCode
}

// AttachGroups overwrites the group columns of each detail with the resolved groups.
func AttachGroups(details []models.PendingRegistrationDetail, groups map[string]models.SubjectGroup) {
	for i := range details {
		d := &details[i]
		group, ok := groups[d.SubjectOfferingID]
		if !ok {
			d.GroupID, d.GroupName, d.GroupCode, d.GroupOrder = nil, nil, nil, nil
			continue
		}
		id, name, code, order := group.ID, DisplayName(&group, d.SubjectName), DisplayCode(&group, d.SubjectCode), group.DisplayOrder
		d.GroupID, d.GroupName, d.GroupCode, d.GroupOrder = &id, &name, &code, &order
	}
}
