package generic_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysmayal/tracking-engine/generic"
)

// =============================================================================
// PROPERTIES - Checked over an enumerated space of snapshots
// =============================================================================

var (
	propStatuses    = []any{nil, "Draft", "Building", "Testing", "Done", "Paused", "Scrapped", "Review", "Mystery"}
	propPercentages = []any{nil, 0, 1, 40, 80, 99, 100, "", "oops"}
	propTriggers    = []generic.Field{generic.TriggerRefresh, fStatus, fPercentage, fExpiry, fReview, fSigned, fApproval, "unknown"}
)

func propSnapshots() []generic.Snapshot {
	var out []generic.Snapshot
	for _, st := range propStatuses {
		for _, pct := range propPercentages {
			snap := generic.Snapshot{fExpiry: "2025-03-10", fSigned: "2024-05-01"}
			if st != nil {
				snap[fStatus] = st
			}
			if pct != nil {
				snap[fPercentage] = pct
			}
			out = append(out, snap)
		}
	}
	return out
}

func TestProperty_Idempotence(t *testing.T) {
	// GIVEN: Any snapshot and trigger
	// WHEN: Derive is called twice with identical input
	// THEN: Identical patch, alerts and error

	engine := newTestEngine(t)
	for _, snap := range propSnapshots() {
		for _, trigger := range propTriggers {
			in := generic.Input{EntityType: widget, Snapshot: snap, Trigger: trigger, Today: march1}

			first, err1 := engine.Derive(in)
			second, err2 := engine.Derive(in)

			if diff := cmp.Diff(first, second); diff != "" {
				t.Fatalf("non-deterministic result for %v / %q:\n%s", snap, trigger, diff)
			}
			assert.Equal(t, fmt.Sprint(err1), fmt.Sprint(err2))
		}
	}
}

func TestProperty_CompletionInvariant(t *testing.T) {
	// GIVEN: Any snapshot
	// WHEN: The status, percentage or score trigger fires and the patch is applied
	// THEN: percentage 100 never coexists with a non-completed status, and a
	//       percentage-triggered 0 leaves only the zero status or a forced-zero status

	schema := widgetSchema()
	engine := newTestEngine(t)

	for _, snap := range propSnapshots() {
		for _, trigger := range []generic.Field{fStatus, fPercentage} {
			result, _ := engine.Derive(generic.Input{EntityType: widget, Snapshot: snap, Trigger: trigger, Today: march1})
			require.NotNil(t, result)

			after := result.Patch.Apply(snap)
			pct, set, err := after.Percentage(fPercentage)
			if err != nil || !set {
				continue
			}
			status := after.String(fStatus)

			if pct == 100 && trigger == fPercentage {
				assert.Equal(t, schema.CompletedStatus, status, "snapshot %v trigger %q", snap, trigger)
			}
			if pct == 100 && trigger == fStatus && status != "" {
				assert.Equal(t, schema.CompletedStatus, status, "snapshot %v trigger %q", snap, trigger)
			}
			if pct == 0 && trigger == fPercentage {
				assert.Contains(t, []string{"Draft", "Scrapped"}, status, "snapshot %v", snap)
			}
		}
	}

	// Score triggers reach 100 through the component points.
	for _, snap := range propSnapshots() {
		for _, approval := range []string{"Yes", "No"} {
			for _, testing := range []string{"Passed", "Pending"} {
				scored := snap.Clone()
				scored[fApproval] = approval
				scored[fTesting] = testing
				for _, trigger := range []generic.Field{fApproval, fTesting} {
					result, _ := engine.Derive(generic.Input{EntityType: widget, Snapshot: scored, Trigger: trigger, Today: march1})
					require.NotNil(t, result)

					after := result.Patch.Apply(scored)
					pct, set, err := after.Percentage(fPercentage)
					if err != nil || !set || pct != 100 {
						continue
					}
					if _, patched := result.Patch[fPercentage]; patched {
						assert.Equal(t, schema.CompletedStatus, after.String(fStatus), "snapshot %v trigger %q", scored, trigger)
					}
				}
			}
		}
	}
}

func TestProperty_AlertMonotonicity(t *testing.T) {
	// GIVEN: A fixed expiry date
	// WHEN: today moves forward one day at a time
	// THEN: Severity never decreases, and every day past expiry is Expired

	engine := newTestEngine(t)
	expiry := march1.AddDays(40)
	snap := generic.Snapshot{fExpiry: expiry}

	prev := generic.SeverityNone
	for offset := -60; offset <= 60; offset++ {
		today := expiry.AddDays(offset)
		result, err := engine.Derive(generic.Input{EntityType: widget, Snapshot: snap, Trigger: fExpiry, Today: today})
		require.NoError(t, err)

		sev := generic.SeverityNone
		if len(result.Alerts) > 0 {
			sev = result.Alerts[0].Severity
		}
		assert.GreaterOrEqual(t, sev, prev, "severity dropped at offset %d", offset)
		prev = sev

		if offset > 0 {
			require.Len(t, result.Alerts, 1)
			assert.Equal(t, generic.AlertExpired, result.Alerts[0].Kind)
			assert.Equal(t, -offset, result.Alerts[0].Days)
		}
	}
}
