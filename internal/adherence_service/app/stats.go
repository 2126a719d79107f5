package app

import (
	"github.com/google/uuid"

	"github.com/medtrackhq/medtrack/internal/adherence_service/domain"
)

// Ranking is a letter grade derived from the adherence rate.
type Ranking struct {
	Grade string `json:"grade"`
	Label string `json:"label"`
}

// MedicationStats holds per-medication adherence counters.
type MedicationStats struct {
	MedicationID  uuid.UUID `json:"medication_id"`
	Total         int       `json:"total"`
	Taken         int       `json:"taken"`
	Missed        int       `json:"missed"`
	Skipped       int       `json:"skipped"`
	Pending       int       `json:"pending"`
	AdherenceRate float64   `json:"adherence_rate"`
}

// AdherenceStats is the aggregate view over a set of adherence records.
type AdherenceStats struct {
	Total         int                            `json:"total"`
	Taken         int                            `json:"taken"`
	Missed        int                            `json:"missed"`
	Skipped       int                            `json:"skipped"`
	Pending       int                            `json:"pending"`
	AdherenceRate float64                        `json:"adherence_rate"`
	Ranking       Ranking                        `json:"ranking"`
	ByMedication  map[uuid.UUID]*MedicationStats `json:"by_medication"`
}

// RankingForRate maps an adherence rate to its letter grade. Thresholds are
// closed, ordered and gap-free, so the result is independent of input order.
func RankingForRate(rate float64) Ranking {
	switch {
	case rate >= 90:
		return Ranking{Grade: "A+", Label: "Excellent"}
	case rate >= 80:
		return Ranking{Grade: "A", Label: "Great"}
	case rate >= 70:
		return Ranking{Grade: "B", Label: "Good"}
	case rate >= 60:
		return Ranking{Grade: "C", Label: "Fair"}
	case rate >= 50:
		return Ranking{Grade: "D", Label: "Needs Improvement"}
	default:
		return Ranking{Grade: "E", Label: "Poor"}
	}
}

// adherenceRate is taken over all resolved doses, in percent. Pending doses
// are excluded from the denominator; an empty denominator yields 0, not NaN.
func adherenceRate(taken, missed, skipped int) float64 {
	resolved := taken + missed + skipped
	if resolved == 0 {
		return 0
	}
	return float64(taken) / float64(resolved) * 100
}

// Aggregate folds adherence records into overall and per-medication
// counters in a single pass.
func Aggregate(recs []*domain.AdherenceRecord) AdherenceStats {
	stats := AdherenceStats{
		ByMedication: make(map[uuid.UUID]*MedicationStats),
	}

	for _, rec := range recs {
		med, ok := stats.ByMedication[rec.MedicationID]
		if !ok {
			med = &MedicationStats{MedicationID: rec.MedicationID}
			stats.ByMedication[rec.MedicationID] = med
		}

		stats.Total++
		med.Total++
		switch rec.Status {
		case domain.StatusTaken:
			stats.Taken++
			med.Taken++
		case domain.StatusMissed:
			stats.Missed++
			med.Missed++
		case domain.StatusSkipped:
			stats.Skipped++
			med.Skipped++
		case domain.StatusPending:
			stats.Pending++
			med.Pending++
		}
	}

	stats.AdherenceRate = adherenceRate(stats.Taken, stats.Missed, stats.Skipped)
	stats.Ranking = RankingForRate(stats.AdherenceRate)
	for _, med := range stats.ByMedication {
		med.AdherenceRate = adherenceRate(med.Taken, med.Missed, med.Skipped)
	}
	return stats
}
