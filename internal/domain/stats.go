package domain

// Stats aggregates a sequence of records for the dashboard.
type Stats struct {
	Total       int                 `json:"total"`
	ByType      map[ContentType]int `json:"by_type"`
	ByStatus    map[Status]int      `json:"by_status"`
	Errors      int                 `json:"errors"`
	SuccessRate float64             `json:"success_rate"`
	// AvgProcessingMS covers successful records only.
	AvgProcessingMS int64 `json:"avg_processing_ms"`
}

// ComputeStats counts records by type and status. SuccessRate is a
// percentage rounded to one decimal place.
func ComputeStats(records []DigestRecord) Stats {
	stats := Stats{
		Total:    len(records),
		ByType:   map[ContentType]int{},
		ByStatus: map[Status]int{},
	}

	var (
		successes int
		totalMS   int64
	)
	for _, rec := range records {
		stats.ByType[rec.ContentType]++
		stats.ByStatus[rec.Status]++
		if rec.Status == StatusSuccess {
			successes++
			totalMS += rec.ProcessingMS
			continue
		}
		stats.Errors++
	}

	if stats.Total > 0 {
		rate := float64(successes) / float64(stats.Total) * 100
		stats.SuccessRate = float64(int64(rate*10+0.5)) / 10
	}
	if successes > 0 {
		stats.AvgProcessingMS = totalMS / int64(successes)
	}
	return stats
}
