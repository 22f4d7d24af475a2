// Package compliance tracks product regulatory compliance files.
//
// A compliance file moves between review outcomes, carries an expiry and a
// next review date, and derives its compliance percentage from either its
// status or, while still blank, from an approval and testing score.
package compliance

import "github.com/sysmayal/tracking-engine/generic"

// EntityType is the registered name of compliance records.
const EntityType generic.EntityType = "Compliance"

// =============================================================================
// FIELDS
// =============================================================================

const (
	FieldProduct        generic.Field = "product"
	FieldRegulatoryBody generic.Field = "regulatory_body"
	FieldStatus         generic.Field = "compliance_status"
	FieldPercentage     generic.Field = "compliance_percentage"
	FieldPriority       generic.Field = "priority"
	FieldRiskLevel      generic.Field = "risk_level"

	FieldApprovalStatus generic.Field = "approval_status"
	FieldApprovalDate   generic.Field = "approval_date"
	FieldExpiryDate     generic.Field = "expiry_date"
	FieldNextReviewDate generic.Field = "next_review_date"

	FieldTestingStatus      generic.Field = "testing_status"
	FieldRequiredTests      generic.Field = "required_tests"
	FieldCertificationsHeld generic.Field = "certifications_held"
)

// =============================================================================
// STATUSES
// =============================================================================

// Status is a compliance review outcome.
type Status string

const (
	StatusNotStarted         Status = "Not Started"
	StatusPendingReview      Status = "Pending Review"
	StatusPartiallyCompliant Status = "Partially Compliant"
	StatusNonCompliant       Status = "Non-Compliant"
	StatusCompliant          Status = "Compliant"
	StatusExpired            Status = "Expired"
)

func AllStatuses() []Status {
	return []Status{
		StatusNotStarted, StatusPendingReview, StatusPartiallyCompliant,
		StatusNonCompliant, StatusCompliant, StatusExpired,
	}
}

// Approval and testing values that contribute to the compliance score.
const (
	ApprovalNotSubmitted = "Not Submitted"
	ApprovalUnderReview  = "Under Review"
	ApprovalApproved     = "Approved"
	ApprovalRejected     = "Rejected"

	TestingNotStarted = "Not Started"
	TestingInProgress = "In Progress"
	TestingCompleted  = "Completed"
)

// Date arithmetic constants.
const (
	ValidityMonths      = 24 // approval_date -> expiry_date
	PendingReviewDays   = 30 // Pending Review -> next_review_date
	ReviewCycleMonths   = 12 // next_review_date on creation
	ReviewDueWindowDays = 7
	ExpiryDueWindowDays = 30
)

func init() {
	generic.DefaultRegistry.MustRegister(Schema())
}
