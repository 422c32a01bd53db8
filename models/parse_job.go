package models

// ParseJobStatus beschreibt den Zustand eines Parse-Jobs für ein Paper.
type ParseJobStatus string

const (
	ParseJobSubmitted ParseJobStatus = "submitted"
	ParseJobPolling   ParseJobStatus = "polling"
	ParseJobCompleted ParseJobStatus = "completed"
	ParseJobFailed    ParseJobStatus = "failed"
)

// ParseJob verfolgt das Hintergrund-Parsing eines Paper-Dokuments.
// Pro Paper-ID existiert zu jedem Zeitpunkt höchstens ein lebender Job.
type ParseJob struct {
	PaperID  string         `json:"paper_id"`
	JobID    string         `json:"job_id,omitempty"`
	Status   ParseJobStatus `json:"status"`
	Attempts int            `json:"attempts"`
}
