/*
engine.go - The status derivation engine

PURPOSE:
  Computes the patch and the alerts for one record edit. Every call is pure:
  it reads the snapshot, the trigger field and the caller's "today", and
  returns proposals. Applying the patch (and not looping on it) is the
  caller's job.

RULES BY TRIGGER:
  status field:
    1. -> CompletedStatus: percentage := 100 when different
    2. -> ZeroStatus:      percentage := 0 when different
    3. -> other status:    default percentage per StatusDefaults mode;
                           a stale 100 is always replaced
    +  StatusDateRules for the new status

  percentage field:
    4. == 100: status := CompletedStatus
    5. == 0:   status := ZeroStatus (a status forced to 0 stays)
    6. else:   no patch

  date field or refresh:
    7. DateRules raise Expired/ExpiringSoon or Overdue/DueSoon

  offset source or refresh:
    8. OffsetRules fill an unset target date

  score / lookup triggers:
    ScoreRules and LookupRules fill unset fields

  anything else: empty result, no error

ERRORS:
  - Unregistered entity type: nil result, *InvalidEntityTypeError
  - Unreadable date or percentage: the rule reading it is skipped, the result
    is returned with the joined *InvalidFieldError values

SEE ALSO:
  - schema.go: The tables these rules read
  - alerts.go: Date rule evaluation
*/
package generic

import (
	"errors"
)

// =============================================================================
// ENGINE
// =============================================================================

// Input is one derivation request.
type Input struct {
	EntityType EntityType
	Snapshot   Snapshot
	Trigger    Field // TriggerRefresh for a full refresh
	Today      Date
}

// Result is the engine's proposal. Patch is never nil.
type Result struct {
	Patch  Patch   `json:"patch"`
	Alerts []Alert `json:"alerts"`
}

// Engine resolves entity types against a registry and applies their schema.
// Safe for concurrent use.
type Engine struct {
	Registry *Registry
}

// NewEngine creates an engine over the given registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{Registry: registry}
}

// Derive computes the patch and alerts for one trigger.
func (e *Engine) Derive(in Input) (*Result, error) {
	schema, err := e.Registry.Lookup(in.EntityType)
	if err != nil {
		return nil, err
	}
	return schema.Derive(in.Snapshot, in.Trigger, in.Today)
}

// Defaults returns load-time values for the record's unset fields.
func (e *Engine) Defaults(entityType EntityType, snapshot Snapshot, today Date) (Patch, error) {
	schema, err := e.Registry.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	return schema.Defaults(snapshot, today)
}

// Derive applies this schema's rules. See the file header for the rule list.
func (s Schema) Derive(snapshot Snapshot, trigger Field, today Date) (*Result, error) {
	d := &deriver{schema: s, snap: snapshot, today: today, patch: Patch{}}

	if trigger == TriggerRefresh {
		d.dateAlerts(trigger)
		d.offsets(trigger)
		return d.result()
	}

	if trigger == s.StatusField {
		d.statusChanged()
	}
	if s.HasPercentage() && trigger == s.PercentageField {
		d.percentageChanged()
	}
	d.dateAlerts(trigger)
	d.offsets(trigger)
	d.scores(trigger)
	d.lookups(trigger)
	return d.result()
}

// Defaults fills unset fields from LoadDefaults, then from LookupRules whose
// source is already set.
func (s Schema) Defaults(snapshot Snapshot, today Date) (Patch, error) {
	patch := Patch{}
	for _, r := range s.LookupRules {
		if snapshot.IsSet(r.Target) || !snapshot.IsSet(r.Source) {
			continue
		}
		if v := r.Values[snapshot.String(r.Source)]; v != "" {
			patch[r.Target] = v
		}
	}
	for _, def := range s.LoadDefaults {
		if snapshot.IsSet(def.Field) {
			continue
		}
		if !def.FromToday {
			patch[def.Field] = def.Value
			continue
		}
		if today.IsZero() {
			return patch, &InvalidFieldError{Field: "today", Value: today, Err: ErrInvalidDate}
		}
		patch[def.Field] = today.AddMonths(def.Months).AddDays(def.Days)
	}
	return patch, nil
}

// =============================================================================
// RULES
// =============================================================================

type deriver struct {
	schema Schema
	snap   Snapshot
	today  Date

	patch        Patch
	alerts       []Alert
	errs         []error
	todayFlagged bool
}

func (d *deriver) result() (*Result, error) {
	return &Result{Patch: d.patch, Alerts: d.alerts}, errors.Join(d.errs...)
}

// needToday reports whether today is usable, recording the error once.
func (d *deriver) needToday() bool {
	if !d.today.IsZero() {
		return true
	}
	if !d.todayFlagged {
		d.errs = append(d.errs, &InvalidFieldError{Field: "today", Value: d.today, Err: ErrInvalidDate})
		d.todayFlagged = true
	}
	return false
}

func (d *deriver) percentage() (int, bool, bool) {
	pct, set, err := d.snap.Percentage(d.schema.PercentageField)
	if err != nil {
		d.errs = append(d.errs, err)
		return 0, false, false
	}
	return pct, set, true
}

func (d *deriver) statusChanged() {
	s := d.schema
	status := d.snap.String(s.StatusField)
	d.statusDates(status)

	if !s.HasPercentage() {
		return
	}
	pct, set, ok := d.percentage()
	if !ok {
		return
	}

	switch {
	case status == s.CompletedStatus:
		if pct != 100 {
			d.patch[s.PercentageField] = 100
		}
		return
	case s.ZeroStatus != "" && status == s.ZeroStatus:
		if pct != 0 {
			d.patch[s.PercentageField] = 0
		}
		return
	}

	def, hasDefault := s.StatusDefaults[status]

	// 100 only ever means completed; leaving the completed status resets it.
	if set && pct == 100 {
		target := s.ReopenPercentage
		if hasDefault && def.Mode != DefaultKeep {
			target = def.Percentage
		}
		if target != 100 {
			d.patch[s.PercentageField] = target
		}
		return
	}

	if !hasDefault {
		return
	}
	switch def.Mode {
	case DefaultFixed:
		if pct == 0 && def.Percentage != 0 {
			d.patch[s.PercentageField] = def.Percentage
		}
	case DefaultForce:
		if pct != def.Percentage || !set {
			d.patch[s.PercentageField] = def.Percentage
		}
	case DefaultKeep:
	}
}

func (d *deriver) percentageChanged() {
	s := d.schema
	pct, set, ok := d.percentage()
	if !ok || !set {
		return
	}
	status := d.snap.String(s.StatusField)

	switch pct {
	case 100:
		if status != s.CompletedStatus {
			d.patch[s.StatusField] = s.CompletedStatus
		}
	case 0:
		if s.ZeroStatus == "" || status == s.ZeroStatus {
			return
		}
		if def, ok := s.StatusDefaults[status]; ok && def.Mode == DefaultForce && def.Percentage == 0 {
			return
		}
		d.patch[s.StatusField] = s.ZeroStatus
	}
}

func (d *deriver) statusDates(status string) {
	for _, r := range d.schema.StatusDateRules {
		if r.Status != status || d.snap.IsSet(r.Target) {
			continue
		}
		if !d.needToday() {
			return
		}
		d.patch[r.Target] = d.today.AddMonths(r.Months).AddDays(r.Days)
	}
}

func (d *deriver) dateAlerts(trigger Field) {
	for _, r := range d.schema.DateRules {
		if trigger != TriggerRefresh && trigger != r.Field {
			continue
		}
		target, set, err := d.snap.Date(r.Field)
		if err != nil {
			d.errs = append(d.errs, err)
			continue
		}
		if !set || !d.needToday() {
			continue
		}
		if alert := r.Evaluate(target, d.today); alert != nil {
			d.alerts = append(d.alerts, *alert)
		}
	}
}

func (d *deriver) offsets(trigger Field) {
	for _, r := range d.schema.OffsetRules {
		if trigger != TriggerRefresh && trigger != r.Source {
			continue
		}
		if d.snap.IsSet(r.Target) {
			continue
		}
		source, set, err := d.snap.Date(r.Source)
		if err != nil {
			d.errs = append(d.errs, err)
			continue
		}
		if !set {
			continue
		}
		d.patch[r.Target] = source.AddMonths(r.Months).AddDays(r.Days)
	}
}

func (d *deriver) scores(trigger Field) {
	s := d.schema
	for _, r := range s.ScoreRules {
		if !containsField(r.Triggers, trigger) {
			continue
		}
		if !d.allSet(r.RequireAll) {
			continue
		}
		pct, _, ok := d.percentage()
		if !ok || pct != 0 {
			continue
		}
		score := 0
		for _, c := range r.Components {
			if !d.snap.IsSet(c.Field) {
				continue
			}
			score += c.Points[d.snap.String(c.Field)]
			score += c.PresentPoints
		}
		if r.Cap > 0 && score > r.Cap {
			score = r.Cap
		}
		if score > 100 {
			score = 100
		}
		if score > 0 {
			d.patch[s.PercentageField] = score
			// A full score completes the record like a typed 100 would.
			if score == 100 && s.CompletedStatus != "" && d.snap.String(s.StatusField) != s.CompletedStatus {
				d.patch[s.StatusField] = s.CompletedStatus
			}
		}
	}
}

func (d *deriver) lookups(trigger Field) {
	for _, r := range d.schema.LookupRules {
		if r.Source != trigger || d.snap.IsSet(r.Target) {
			continue
		}
		if v := r.Values[d.snap.String(r.Source)]; v != "" {
			d.patch[r.Target] = v
		}
	}
}

func (d *deriver) allSet(fields []Field) bool {
	for _, f := range fields {
		if !d.snap.IsSet(f) {
			return false
		}
	}
	return true
}

func containsField(fields []Field, f Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
