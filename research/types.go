// Package research tracks market research studies.
// It configures the generic engine with the research status vocabulary and
// the completion percentage defaults of each study stage.
package research

import "github.com/sysmayal/tracking-engine/generic"

// EntityType is the registered name of research records.
const EntityType generic.EntityType = "Research"

// =============================================================================
// FIELDS
// =============================================================================

const (
	FieldTitle      generic.Field = "research_title"
	FieldStatus     generic.Field = "research_status"
	FieldPercentage generic.Field = "completion_percentage"
	FieldPriority   generic.Field = "priority"
	FieldDate       generic.Field = "research_date"
	FieldTargetDate generic.Field = "target_completion_date"
	FieldResearcher generic.Field = "lead_researcher"
	FieldProduct    generic.Field = "product"
)

// =============================================================================
// STATUSES
// =============================================================================

// Status is a research lifecycle stage.
type Status string

const (
	StatusPlanning       Status = "Planning"
	StatusInProgress     Status = "In Progress"
	StatusDataCollection Status = "Data Collection"
	StatusAnalysis       Status = "Analysis"
	StatusReporting      Status = "Reporting"
	StatusCompleted      Status = "Completed"
	StatusOnHold         Status = "On Hold"
	StatusCancelled      Status = "Cancelled"
)

// AllStatuses returns the status enum in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPlanning, StatusInProgress, StatusDataCollection, StatusAnalysis,
		StatusReporting, StatusCompleted, StatusOnHold, StatusCancelled,
	}
}

// ReopenPercentage replaces a stale 100 when a completed study is put on hold.
const ReopenPercentage = 90

func init() {
	generic.DefaultRegistry.MustRegister(Schema())
}
