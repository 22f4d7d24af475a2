package generic

import (
	"encoding/json"
	"fmt"
	"sort"
)

// =============================================================================
// ALERTS - Advisory date signals, never persisted
// =============================================================================

// AlertKind classifies a date alert.
type AlertKind string

const (
	AlertExpired      AlertKind = "Expired"      // expiry date passed
	AlertExpiringSoon AlertKind = "ExpiringSoon" // expiry date within window
	AlertOverdue      AlertKind = "Overdue"      // review/audit date passed
	AlertDueSoon      AlertKind = "DueSoon"      // review/audit date within window
)

// Severity orders alerts. The zero value means "no alert".
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	default:
		return "none"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Severity) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "warning":
		*s = SeverityWarning
	case "fatal":
		*s = SeverityFatal
	case "none", "":
		*s = SeverityNone
	default:
		return fmt.Errorf("invalid severity: %q", str)
	}
	return nil
}

// Alert is one date-driven signal. Days is target - today.
type Alert struct {
	Kind     AlertKind `json:"kind"`
	Field    Field     `json:"field"`
	Days     int       `json:"days"`
	Severity Severity  `json:"severity"`
	Date     Date      `json:"date"`
}

// =============================================================================
// DATE RULES - Which fields raise which alerts
// =============================================================================

// DateRuleKind selects the alert vocabulary for a date field.
type DateRuleKind string

const (
	DateExpiry DateRuleKind = "expiry" // Expired / ExpiringSoon
	DateReview DateRuleKind = "review" // Overdue / DueSoon
	DateAudit  DateRuleKind = "audit"  // Overdue / DueSoon
)

// Default due-soon windows in days.
const (
	DefaultExpiryWindow = 30
	DefaultReviewWindow = 7
	DefaultAuditWindow  = 30
)

// DateRule raises an alert when Field is past due or within WindowDays of today.
type DateRule struct {
	Field      Field
	Kind       DateRuleKind
	WindowDays int
}

// Window returns the due-soon window, falling back to the kind's default.
func (r DateRule) Window() int {
	if r.WindowDays > 0 {
		return r.WindowDays
	}
	switch r.Kind {
	case DateReview:
		return DefaultReviewWindow
	case DateAudit:
		return DefaultAuditWindow
	default:
		return DefaultExpiryWindow
	}
}

// Evaluate returns the alert for target relative to today, or nil.
// Severity depends only on target - today.
func (r DateRule) Evaluate(target, today Date) *Alert {
	days := DaysBetween(today, target)
	switch {
	case days < 0:
		return &Alert{Kind: r.pastKind(), Field: r.Field, Days: days, Severity: SeverityFatal, Date: target}
	case days <= r.Window():
		return &Alert{Kind: r.soonKind(), Field: r.Field, Days: days, Severity: SeverityWarning, Date: target}
	default:
		return nil
	}
}

func (r DateRule) pastKind() AlertKind {
	if r.Kind == DateExpiry {
		return AlertExpired
	}
	return AlertOverdue
}

func (r DateRule) soonKind() AlertKind {
	if r.Kind == DateExpiry {
		return AlertExpiringSoon
	}
	return AlertDueSoon
}

// SortAlerts orders alerts most urgent first: fatal before warning, then by days.
// Stable, so equal alerts keep schema order.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return alerts[i].Severity > alerts[j].Severity
		}
		return alerts[i].Days < alerts[j].Days
	})
}
