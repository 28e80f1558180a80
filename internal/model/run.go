package model

import "time"

// RunKind identifies which pipeline stage a sync run executed.
type RunKind string

const (
	RunKindScrape  RunKind = "scrape"
	RunKindCollect RunKind = "collect"
	RunKindPush    RunKind = "push"
)

// SyncRun records one invocation of a pipeline stage for status reporting.
type SyncRun struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Ingested   int        `json:"ingested"`
	Rejected   int        `json:"rejected"`
	Error      string     `json:"error,omitempty"`
}
