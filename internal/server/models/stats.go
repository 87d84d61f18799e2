package models

// FileStats aggregates the file_metadata table.
type FileStats struct {
	Total       int64
	AvgRisk     float64
	Quarantined int64
	Safe        int64
	Warning     int64
	Critical    int64
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers int64
	Files      FileStats
}
