package model

import "fmt"

// StepStatus is the outcome of one best-effort side effect. Failures are data,
// not errors: a failed note must never abort the stage update that follows it.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepSkipped StepStatus = "skipped"
)

// StepFailed builds the failed variant carrying the reason, matching the
// "failed: <reason>" shape exposed in webhook responses.
func StepFailed(err error) StepStatus {
	return StepStatus(fmt.Sprintf("failed: %v", err))
}

// Failed reports whether the status records a failure.
func (s StepStatus) Failed() bool {
	return s != StepOK && s != StepSkipped
}

// Report aggregates the side-effect outcomes of one interpreted event.
type Report struct {
	ReplyNote   StepStatus `json:"kommo_note,omitempty"`
	SummaryNote StepStatus `json:"summary_note,omitempty"`
	StageUpdate StepStatus `json:"stage_update,omitempty"`
	Callback    StepStatus `json:"widget_callback,omitempty"`
	Outbound    StepStatus `json:"outbound,omitempty"`
}

// Lead is the slice of a Kommo lead this service cares about.
type Lead struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	StatusID int64  `json:"status_id"`
}
