package models

import "time"

// SessionStatus is the lifecycle state of a crawl session.
type SessionStatus string

// Session statuses.
const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// CrawlSession is the bookkeeping record for one crawl of one source under
// one filter snapshot. Counters only grow within a run; the session is
// finished exactly once.
type CrawlSession struct {
	ID             int64         `json:"id"`
	SourceName     string        `json:"sourceName"`
	StartedAt      time.Time     `json:"startedAt"`
	FinishedAt     *time.Time    `json:"finishedAt,omitempty"`
	Status         SessionStatus `json:"status"`
	TotalPages     *int          `json:"totalPages,omitempty"`
	ProcessedPages int           `json:"processedPages"`
	TotalListings  int           `json:"totalListings"`
	NewCount       int           `json:"newCount"`
	UpdatedCount   int           `json:"updatedCount"`
	ErrorCount     int           `json:"errorCount"`
	FilterSnapshot SearchFilters `json:"filterSnapshot"`
	ErrorLog       *string       `json:"errorLog,omitempty"`
}

// ProgressUpdate is a partial counter update for a running session. Only
// non-nil fields are applied, so periodic flushes can send just the counters
// that moved.
type ProgressUpdate struct {
	TotalPages     *int
	ProcessedPages *int
	TotalListings  *int
	NewCount       *int
	UpdatedCount   *int
	ErrorCount     *int
}

// SessionResult is the typed outcome of one crawl, returned to callers even
// on partial failure so counts remain inspectable.
type SessionResult struct {
	SessionID    int64         `json:"sessionId"`
	SourceName   string        `json:"sourceName"`
	TotalPages   int           `json:"totalPages"`
	NewCount     int           `json:"newCount"`
	UpdatedCount int           `json:"updatedCount"`
	ErrorCount   int           `json:"errorCount"`
	Status       SessionStatus `json:"status"`
}
