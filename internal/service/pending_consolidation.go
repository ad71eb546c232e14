package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/models"
)

// GroupGradePolicy decides how member final grades fold into a group grade.
type GroupGradePolicy string

const (
	// GroupGradeMinimum takes the lowest member grade.
	GroupGradeMinimum GroupGradePolicy = "minimum"
	// GroupGradeAverage takes the truncated mean of member grades.
	GroupGradeAverage GroupGradePolicy = "average"
	// GroupGradeMinimumUnlessAllPassed averages when every member passed, otherwise takes the minimum.
	GroupGradeMinimumUnlessAllPassed GroupGradePolicy = "minimum_unless_all_passed"
)

// ParseGroupGradePolicy resolves a configured policy; unknown names fall back to minimum.
func ParseGroupGradePolicy(raw string) (GroupGradePolicy, bool) {
	switch p := GroupGradePolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case GroupGradeMinimum, GroupGradeAverage, GroupGradeMinimumUnlessAllPassed:
		return p, true
	}
	return GroupGradeMinimum, false
}

// Apply folds grades. It returns nil when grades is empty.
func (p GroupGradePolicy) Apply(grades []int) *int {
	if len(grades) == 0 {
		return nil
	}
	lowest, sum := grades[0], 0
	for _, g := range grades {
		if g < lowest {
			lowest = g
		}
		sum += g
	}
	avg := sum / len(grades)

	var result int
	switch p {
	case GroupGradeAverage:
		result = avg
	case GroupGradeMinimumUnlessAllPassed:
		if lowest >= models.PassingGrade {
			result = avg
		} else {
			result = lowest
		}
	default:
		result = lowest
	}
	return &result
}

// ConsolidateCheckpoint folds one checkpoint across members.
// The value stays unset until every member has one.
func ConsolidateCheckpoint(period models.Period, values []models.PeriodValue) dto.CheckpointStatus {
	status := dto.CheckpointStatus{Period: period, Total: len(values)}
	allAA, anyCCA := true, false
	for _, v := range values {
		if v == models.PeriodValueUnset {
			continue
		}
		status.Evaluated++
		if v != models.PeriodValueAA {
			allAA = false
		}
		if v == models.PeriodValueCCA {
			anyCCA = true
		}
	}
	if status.Total == 0 || status.Evaluated < status.Total {
		return status
	}
	switch {
	case allAA:
		status.Value = models.PeriodValueAA
	case anyCCA:
		status.Value = models.PeriodValueCCA
	default:
		status.Value = models.PeriodValueCSA
	}
	return status
}

// ConsolidateGroup builds one display item from registrations sharing a group.
// A single member, or members without a group id, yield a non-group item keyed by the
// first registration.
func ConsolidateGroup(members []models.PendingRegistrationDetail, policy GroupGradePolicy) dto.PendingItem {
	sorted := make([]models.PendingRegistrationDetail, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SubjectName < sorted[j].SubjectName
	})

	item := dto.PendingItem{Members: make([]dto.GroupMember, 0, len(sorted)), ProfessorNames: []string{}}
	if len(sorted) == 0 {
		return item
	}
	first := sorted[0]
	item.IsGroup = len(sorted) > 1 && first.GroupID != nil
	item.GroupID = first.GroupID
	item.DisplayName = first.DisplayName()
	item.DisplayCode = first.DisplayCode()
	if item.IsGroup {
		item.Key = "group:" + *first.GroupID
	} else {
		item.Key = "registration:" + first.ID
	}

	var (
		grades       []int
		initialGaps  []string
		closingGaps  []string
		latest       = make(map[models.PeriodValue]struct{})
		latestCount  int
		seenTeachers = make(map[string]struct{})
	)
	for i := range sorted {
		m := &sorted[i]
		values := m.PeriodValues()
		current := CurrentStatus(values)
		item.Members = append(item.Members, dto.GroupMember{
			RegistrationID:    m.ID,
			SubjectOfferingID: m.SubjectOfferingID,
			SubjectName:       m.SubjectName,
			SubjectCode:       m.SubjectCode,
			ProfessorName:     m.ProfessorName,
			Periods:           values,
			CurrentStatus:     current,
			FinalGrade:        m.FinalGrade,
			Version:           m.Version,
		})
		if m.State == models.RegistrationStateActive {
			item.Active = true
		}
		if m.AnyPeriodSet() {
			item.AnyEvaluated = true
		}
		if m.FinalGrade != nil {
			grades = append(grades, *m.FinalGrade)
		}
		if current != models.PeriodValueUnset {
			latest[current] = struct{}{}
			latestCount++
		}
		if gaps := strings.TrimSpace(m.InitialGaps); gaps != "" {
			initialGaps = append(initialGaps, gaps)
		}
		if m.ClosingGaps != nil && strings.TrimSpace(*m.ClosingGaps) != "" {
			closingGaps = append(closingGaps, strings.TrimSpace(*m.ClosingGaps))
		}
		if m.ProfessorName != nil && *m.ProfessorName != "" {
			if _, ok := seenTeachers[*m.ProfessorName]; !ok {
				seenTeachers[*m.ProfessorName] = struct{}{}
				item.ProfessorNames = append(item.ProfessorNames, *m.ProfessorName)
			}
		}
	}

	consolidated := make([]models.PeriodValue, len(models.Periods))
	item.Checkpoints = make([]dto.CheckpointStatus, len(models.Periods))
	for pi, period := range models.Periods {
		column := make([]models.PeriodValue, len(sorted))
		for mi := range sorted {
			column[mi] = sorted[mi].PeriodValue(period)
		}
		item.Checkpoints[pi] = ConsolidateCheckpoint(period, column)
		consolidated[pi] = item.Checkpoints[pi].Value
	}

	if len(grades) == len(sorted) {
		item.FinalGrade = policy.Apply(grades)
	}
	item.CurrentStatus = CurrentStatus(consolidated)
	item.Outcome = Outcome(item.FinalGrade, item.CurrentStatus)
	item.AutoSettleable = len(grades) == len(sorted) || (latestCount == len(sorted) && len(latest) == 1)
	item.InitialGaps = strings.Join(initialGaps, "; ")
	if len(closingGaps) > 0 {
		joined := strings.Join(closingGaps, "; ")
		item.ClosingGaps = &joined
	}
	return item
}

// SingleItem builds a display item for an ungrouped registration.
func SingleItem(detail models.PendingRegistrationDetail) dto.PendingItem {
	return ConsolidateGroup([]models.PendingRegistrationDetail{detail}, GroupGradeMinimum)
}

// PartitionItems returns one item per group, ordered by display order then name, followed
// by the ungrouped registrations in input order.
func PartitionItems(details []models.PendingRegistrationDetail, policy GroupGradePolicy) []dto.PendingItem {
	singles := make([]dto.PendingItem, 0, len(details))
	grouped := make(map[string][]models.PendingRegistrationDetail)
	var groupOrder []string
	for _, d := range details {
		if d.GroupID == nil || *d.GroupID == "" {
			singles = append(singles, SingleItem(d))
			continue
		}
		id := *d.GroupID
		if _, ok := grouped[id]; !ok {
			groupOrder = append(groupOrder, id)
		}
		grouped[id] = append(grouped[id], d)
	}

	sort.SliceStable(groupOrder, func(i, j int) bool {
		a, b := grouped[groupOrder[i]][0], grouped[groupOrder[j]][0]
		oa, ob := displayOrder(a), displayOrder(b)
		if oa != ob {
			return oa < ob
		}
		return a.DisplayName() < b.DisplayName()
	})
	items := make([]dto.PendingItem, 0, len(groupOrder)+len(singles))
	for _, id := range groupOrder {
		items = append(items, ConsolidateGroup(grouped[id], policy))
	}
	return append(items, singles...)
}

func displayOrder(d models.PendingRegistrationDetail) int {
	if d.GroupOrder == nil {
		return 0
	}
	return *d.GroupOrder
}
