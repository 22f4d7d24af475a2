package compliance_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysmayal/tracking-engine/compliance"
	"github.com/sysmayal/tracking-engine/generic"
)

var today = generic.NewDate(2025, time.March, 1)

func derive(t *testing.T, snap generic.Snapshot, trigger generic.Field) (*generic.Result, error) {
	t.Helper()
	engine := generic.NewEngine(generic.DefaultRegistry)
	return engine.Derive(generic.Input{
		EntityType: compliance.EntityType,
		Snapshot:   snap,
		Trigger:    trigger,
		Today:      today,
	})
}

// =============================================================================
// STATUS <-> PERCENTAGE
// =============================================================================

func TestCompliance_StatusCompliant_SetsHundred(t *testing.T) {
	// GIVEN: A compliance file with no percentage
	// WHEN: The status is set to Compliant
	// THEN: The percentage is patched to 100

	result, err := derive(t, generic.Snapshot{
		compliance.FieldStatus: "Compliant",
	}, compliance.FieldStatus)

	require.NoError(t, err)
	if diff := cmp.Diff(generic.Patch{compliance.FieldPercentage: 100}, result.Patch); diff != "" {
		t.Errorf("patch mismatch (-want +got):\n%s", diff)
	}
}

func TestCompliance_StatusDefaults(t *testing.T) {
	tests := []struct {
		status  compliance.Status
		current any
		want    generic.Patch
	}{
		{compliance.StatusPartiallyCompliant, nil, generic.Patch{compliance.FieldPercentage: 70}},
		{compliance.StatusNonCompliant, 0, generic.Patch{compliance.FieldPercentage: 20}},
		{compliance.StatusNonCompliant, 45, generic.Patch{}},
		{compliance.StatusExpired, 80, generic.Patch{compliance.FieldPercentage: 0}},
		{compliance.StatusNotStarted, 100, generic.Patch{compliance.FieldPercentage: 0}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			snap := generic.Snapshot{compliance.FieldStatus: string(tt.status)}
			if tt.current != nil {
				snap[compliance.FieldPercentage] = tt.current
			}

			result, err := derive(t, snap, compliance.FieldStatus)

			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, result.Patch); diff != "" {
				t.Errorf("patch mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompliance_PendingReview_SetsNextReviewDate(t *testing.T) {
	// GIVEN: A file with no percentage and no next review date
	// WHEN: The status becomes Pending Review
	// THEN: The percentage defaults to 50 and the review is due in 30 days

	result, err := derive(t, generic.Snapshot{
		compliance.FieldStatus: "Pending Review",
	}, compliance.FieldStatus)

	require.NoError(t, err)
	want := generic.Patch{
		compliance.FieldPercentage:     50,
		compliance.FieldNextReviewDate: generic.NewDate(2025, time.March, 31),
	}
	if diff := cmp.Diff(want, result.Patch); diff != "" {
		t.Errorf("patch mismatch (-want +got):\n%s", diff)
	}
}

func TestCompliance_PendingReview_KeepsExistingReviewDate(t *testing.T) {
	result, err := derive(t, generic.Snapshot{
		compliance.FieldStatus:         "Pending Review",
		compliance.FieldPercentage:     50,
		compliance.FieldNextReviewDate: "2025-06-01",
	}, compliance.FieldStatus)

	require.NoError(t, err)
	assert.True(t, result.Patch.IsEmpty())
}

func TestCompliance_PercentageZero_NoZeroStatus(t *testing.T) {
	// Compliance has no zero status: a 0 percentage leaves the status alone.
	result, err := derive(t, generic.Snapshot{
		compliance.FieldStatus:     "Non-Compliant",
		compliance.FieldPercentage: 0,
	}, compliance.FieldPercentage)

	require.NoError(t, err)
	assert.True(t, result.Patch.IsEmpty())
}

// =============================================================================
// DATES
// =============================================================================

func TestCompliance_ExpiringSoon(t *testing.T) {
	// GIVEN: expiry_date = today + 15
	// WHEN: The expiry date trigger fires
	// THEN: One ExpiringSoon warning with 15 days

	result, err := derive(t, generic.Snapshot{
		compliance.FieldExpiryDate: today.AddDays(15),
	}, compliance.FieldExpiryDate)

	require.NoError(t, err)
	want := []generic.Alert{{
		Kind:     generic.AlertExpiringSoon,
		Field:    compliance.FieldExpiryDate,
		Days:     15,
		Severity: generic.SeverityWarning,
		Date:     today.AddDays(15),
	}}
	if diff := cmp.Diff(want, result.Alerts); diff != "" {
		t.Errorf("alerts mismatch (-want +got):\n%s", diff)
	}
}

func TestCompliance_Expired(t *testing.T) {
	// GIVEN: expiry_date = today - 5
	// WHEN: A full refresh runs
	// THEN: One fatal Expired alert with -5 days

	result, err := derive(t, generic.Snapshot{
		compliance.FieldExpiryDate: today.AddDays(-5).String(),
	}, generic.TriggerRefresh)

	require.NoError(t, err)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, generic.AlertExpired, result.Alerts[0].Kind)
	assert.Equal(t, compliance.FieldExpiryDate, result.Alerts[0].Field)
	assert.Equal(t, -5, result.Alerts[0].Days)
	assert.Equal(t, generic.SeverityFatal, result.Alerts[0].Severity)
}

func TestCompliance_ReviewWindowIsSevenDays(t *testing.T) {
	tests := []struct {
		name string
		days int
		want []generic.AlertKind
	}{
		{"due in 7", 7, []generic.AlertKind{generic.AlertDueSoon}},
		{"due in 8", 8, nil},
		{"due today", 0, []generic.AlertKind{generic.AlertDueSoon}},
		{"overdue", -1, []generic.AlertKind{generic.AlertOverdue}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := derive(t, generic.Snapshot{
				compliance.FieldNextReviewDate: today.AddDays(tt.days),
			}, compliance.FieldNextReviewDate)
			require.NoError(t, err)

			var kinds []generic.AlertKind
			for _, a := range result.Alerts {
				kinds = append(kinds, a.Kind)
			}
			assert.Equal(t, tt.want, kinds)
		})
	}
}

func TestCompliance_Refresh_AlertsInSchemaOrder(t *testing.T) {
	result, err := derive(t, generic.Snapshot{
		compliance.FieldNextReviewDate: today.AddDays(-2),
		compliance.FieldExpiryDate:     today.AddDays(10),
	}, generic.TriggerRefresh)

	require.NoError(t, err)
	require.Len(t, result.Alerts, 2)
	assert.Equal(t, compliance.FieldExpiryDate, result.Alerts[0].Field)
	assert.Equal(t, compliance.FieldNextReviewDate, result.Alerts[1].Field)
}

func TestCompliance_ApprovalDate_DerivesExpiry(t *testing.T) {
	// GIVEN: approval_date set, expiry_date unset
	// WHEN: The approval date trigger fires
	// THEN: expiry_date = approval_date + 24 months

	result, err := derive(t, generic.Snapshot{
		compliance.FieldApprovalDate: "2024-02-29",
	}, compliance.FieldApprovalDate)

	require.NoError(t, err)
	if diff := cmp.Diff(generic.Patch{
		compliance.FieldExpiryDate: generic.NewDate(2026, time.February, 28),
	}, result.Patch); diff != "" {
		t.Errorf("patch mismatch (-want +got):\n%s", diff)
	}
}

func TestCompliance_ApprovalDate_ExistingExpiryKept(t *testing.T) {
	result, err := derive(t, generic.Snapshot{
		compliance.FieldApprovalDate: "2024-01-15",
		compliance.FieldExpiryDate:   "2025-01-15",
	}, compliance.FieldApprovalDate)

	require.NoError(t, err)
	assert.True(t, result.Patch.IsEmpty())
}

func TestCompliance_MalformedDate_OtherRulesStillRun(t *testing.T) {
	// GIVEN: An unparsable expiry date and a review date due in 3 days
	// WHEN: A full refresh runs
	// THEN: The review alert is still raised and the date error is returned

	result, err := derive(t, generic.Snapshot{
		compliance.FieldExpiryDate:     "31/02/2025",
		compliance.FieldNextReviewDate: today.AddDays(3),
	}, generic.TriggerRefresh)

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
	require.NotNil(t, result)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, generic.AlertDueSoon, result.Alerts[0].Kind)

	fields := generic.FieldErrors(err)
	require.Len(t, fields, 1)
	assert.Equal(t, compliance.FieldExpiryDate, fields[0].Field)
}

// =============================================================================
// FACTOR SCORE
// =============================================================================

func TestCompliance_Score(t *testing.T) {
	tests := []struct {
		name string
		snap generic.Snapshot
		want generic.Patch
	}{
		{
			name: "approved and tested completes the record",
			snap: generic.Snapshot{
				compliance.FieldStatus:             string(compliance.StatusPendingReview),
				compliance.FieldApprovalStatus:     "Approved",
				compliance.FieldTestingStatus:      "Completed",
				compliance.FieldRequiredTests:      "EMC, Safety",
				compliance.FieldCertificationsHeld: "CE",
			},
			want: generic.Patch{
				compliance.FieldPercentage: 100,
				compliance.FieldStatus:     string(compliance.StatusCompliant),
			},
		},
		{
			name: "under review, testing in progress",
			snap: generic.Snapshot{
				compliance.FieldApprovalStatus: "Under Review",
				compliance.FieldTestingStatus:  "In Progress",
			},
			want: generic.Patch{compliance.FieldPercentage: 40},
		},
		{
			name: "nothing scored",
			snap: generic.Snapshot{
				compliance.FieldApprovalStatus: "Not Submitted",
				compliance.FieldTestingStatus:  "Not Started",
			},
			want: generic.Patch{},
		},
		{
			name: "testing status missing",
			snap: generic.Snapshot{
				compliance.FieldApprovalStatus: "Approved",
			},
			want: generic.Patch{},
		},
		{
			name: "manual percentage wins",
			snap: generic.Snapshot{
				compliance.FieldApprovalStatus: "Approved",
				compliance.FieldTestingStatus:  "Completed",
				compliance.FieldPercentage:     35,
			},
			want: generic.Patch{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := derive(t, tt.snap, compliance.FieldApprovalStatus)

			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, result.Patch); diff != "" {
				t.Errorf("patch mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// =============================================================================
// LOAD DEFAULTS
// =============================================================================

func TestCompliance_Defaults(t *testing.T) {
	engine := generic.NewEngine(generic.DefaultRegistry)

	patch, err := engine.Defaults(compliance.EntityType, generic.Snapshot{
		compliance.FieldProduct:   "PRD-0001",
		compliance.FieldRiskLevel: "High",
	}, today)

	require.NoError(t, err)
	want := generic.Patch{
		compliance.FieldStatus:         "Pending Review",
		compliance.FieldTestingStatus:  "Not Started",
		compliance.FieldApprovalStatus: "Not Submitted",
		compliance.FieldNextReviewDate: generic.NewDate(2026, time.March, 1),
	}
	if diff := cmp.Diff(want, patch); diff != "" {
		t.Errorf("patch mismatch (-want +got):\n%s", diff)
	}
}
