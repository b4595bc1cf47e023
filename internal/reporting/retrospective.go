package reporting

import (
	"sync"
	"time"
)

// Flow names used in LogEntry.Flow.
const (
	FlowApprove = "approve"
	FlowVault   = "vault"
)

// LogEntry records one terminal outcome.
type LogEntry struct {
	Timestamp    time.Time
	RequestID    string // order id or setup token id
	ClientID     string
	Flow         string // FlowApprove or FlowVault
	Status       string // Kind.String() of the outcome
	ErrorCode    string // "Domain:Code" for classified errors
	ErrorMessage string
}

// Journal is an append-only, concurrency-safe list of LogEntry values.
type Journal struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Record(entry LogEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (j *Journal) Entries() []LogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]LogEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// RetrospectiveReport summarizes outcomes.
type RetrospectiveReport struct {
	TotalOutcomes      int
	ApprovedOrders     int
	FailedOrders       int
	CanceledChallenges int
	VaultedTokens      int
	FailedVaults       int
	ErrorBreakdown     map[string]int // count per ErrorCode
	FlowUsage          map[string]int // count per Flow
	ClientUsage        map[string]int // count per ClientID
	DateFrom           time.Time
	DateTo             time.Time
	ProcessingDuration time.Duration
}

// RetrospectiveReporter generates retrospective reports from log entries.
type RetrospectiveReporter struct{}

// NewRetrospectiveReporter creates a new RetrospectiveReporter.
func NewRetrospectiveReporter() *RetrospectiveReporter {
	return &RetrospectiveReporter{}
}

// GenerateRetrospective analyzes logs and produces a RetrospectiveReport.
func (rr *RetrospectiveReporter) GenerateRetrospective(logs []LogEntry) (*RetrospectiveReport, error) {
	report := &RetrospectiveReport{
		ErrorBreakdown: make(map[string]int),
		FlowUsage:      make(map[string]int),
		ClientUsage:    make(map[string]int),
	}
	if len(logs) == 0 {
		return report, nil
	}

	report.DateFrom = logs[0].Timestamp
	report.DateTo = logs[0].Timestamp
	for _, entry := range logs {
		report.TotalOutcomes++

		if entry.Timestamp.Before(report.DateFrom) {
			report.DateFrom = entry.Timestamp
		}
		if entry.Timestamp.After(report.DateTo) {
			report.DateTo = entry.Timestamp
		}
		if entry.Flow != "" {
			report.FlowUsage[entry.Flow]++
		}
		if entry.ClientID != "" {
			report.ClientUsage[entry.ClientID]++
		}

		switch entry.Status {
		case KindSuccess.String():
			report.ApprovedOrders++
		case KindFailure.String():
			report.FailedOrders++
		case KindCancellation.String():
			report.CanceledChallenges++
		case KindVaultSuccess.String():
			report.VaultedTokens++
		case KindVaultFailure.String():
			report.FailedVaults++
		}
		if entry.ErrorCode != "" {
			report.ErrorBreakdown[entry.ErrorCode]++
		}
	}
	report.ProcessingDuration = report.DateTo.Sub(report.DateFrom)

	return report, nil
}
