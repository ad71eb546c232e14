package service

import (
	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/models"
)

// Aggregate counts active items into four disjoint buckets that sum to Total.
func Aggregate(items []dto.PendingItem) dto.PendingStatistics {
	var stats dto.PendingStatistics
	for _, item := range items {
		if !item.Active {
			continue
		}
		stats.Total++
		switch {
		case item.FinalGrade != nil && *item.FinalGrade >= models.PassingGrade:
			stats.Approved++
		case item.FinalGrade != nil:
			stats.NotApproved++
		case item.CurrentStatus == models.PeriodValueAA:
			stats.Approved++
		case !item.AnyEvaluated:
			stats.Unevaluated++
		default:
			stats.InProgress++
		}
	}
	return stats
}
