package models

import "time"

// PropertyStatistics aggregates the stored inventory by its main axes plus
// the activity of the trailing 24 hours.
type PropertyStatistics struct {
	TotalProperties int                   `json:"totalProperties"`
	ByType          map[PropertyType]int  `json:"byType"`
	ByOperation     map[OperationType]int `json:"byOperation"`
	BySource        map[string]int        `json:"bySource"`
	NewLast24h      int                   `json:"newLast24h"`
	UpdatedLast24h  int                   `json:"updatedLast24h"`
}

// CrawlStatistics aggregates session outcomes across all sources.
type CrawlStatistics struct {
	TotalSessions     int            `json:"totalSessions"`
	CompletedSessions int            `json:"completedSessions"`
	FailedSessions    int            `json:"failedSessions"`
	RunningSessions   int            `json:"runningSessions"`
	SessionsLast24h   int            `json:"sessionsLast24h"`
	BySource          map[string]int `json:"bySource"`
}

// Statistics is the combined overview served by the API.
type Statistics struct {
	Properties  PropertyStatistics `json:"properties"`
	Sessions    CrawlStatistics    `json:"sessions"`
	GeneratedAt time.Time          `json:"generatedAt"`
}
