// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/exam-audit/pkg/types"
)

// Report summarizes one pipeline run.
type Report struct {
	Total     int `json:"total" yaml:"total"`
	Completed int `json:"completed" yaml:"completed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`
	Resumed   int `json:"resumed" yaml:"resumed"`

	Verified       int `json:"verified" yaml:"verified"`
	ChangesApplied int `json:"changesApplied" yaml:"changes_applied"`
	Reviewed       int `json:"reviewed" yaml:"reviewed"`
	Maintenance    int `json:"maintenance" yaml:"maintenance"`

	// MaintenanceReasons is a histogram over accumulated reason codes.
	MaintenanceReasons map[string]int `json:"maintenanceReasons,omitempty" yaml:"maintenance_reasons,omitempty"`

	Repeats []RepeatSuggestion `json:"repeats,omitempty" yaml:"repeats,omitempty"`
}

// NewReport starts a report for total questions.
func NewReport(total int) *Report {
	return &Report{Total: total, MaintenanceReasons: make(map[string]int)}
}

// Observe counts one analyzed question. Callers serialize access.
func (r *Report) Observe(q *types.Question) {
	a := q.Audit
	if a == nil {
		return
	}
	switch a.Status {
	case types.AuditCompleted:
		r.Completed++
	case types.AuditSkipped:
		r.Skipped++
	case types.AuditFailed:
		r.Failed++
	}
	if a.Verification.Ran {
		r.Verified++
	}
	if a.Verification.AppliedChange {
		r.ChangesApplied++
	}
	if a.Review.Ran {
		r.Reviewed++
	}
	if a.Maintenance.NeedsMaintenance {
		r.Maintenance++
		for _, reason := range a.Maintenance.Reasons {
			r.MaintenanceReasons[reason]++
		}
	}
}

// Write prints the human-readable summary.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "\ncompleted: %d, skipped: %d, failed: %d, resumed: %d (of %d)\n",
		r.Completed, r.Skipped, r.Failed, r.Resumed, r.Total)
	fmt.Fprintf(w, "verified: %d, changes applied: %d, reviewed: %d, maintenance: %d\n",
		r.Verified, r.ChangesApplied, r.Reviewed, r.Maintenance)

	if len(r.MaintenanceReasons) > 0 {
		reasons := make([]string, 0, len(r.MaintenanceReasons))
		for reason := range r.MaintenanceReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		fmt.Fprintf(w, "maintenance reasons:\n")
		for _, reason := range reasons {
			fmt.Fprintf(w, "  %-45s %d\n", reason, r.MaintenanceReasons[reason])
		}
	}
	if len(r.Repeats) > 0 {
		fmt.Fprintf(w, "repeat suggestions: %d\n", len(r.Repeats))
	}
}

// Export writes the report as YAML.
func (r *Report) Export(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
