package research

import "github.com/sysmayal/tracking-engine/generic"

// Schema returns the research derivation table.
//
// Stage defaults only apply to a blank or zero percentage. "On Hold" keeps
// the percentage on file; "Cancelled" always resets it to 0.
func Schema() generic.Schema {
	statuses := make([]string, 0, len(AllStatuses()))
	for _, s := range AllStatuses() {
		statuses = append(statuses, string(s))
	}

	return generic.Schema{
		EntityType:      EntityType,
		Name:            "Market Research",
		StatusField:     FieldStatus,
		PercentageField: FieldPercentage,
		Statuses:        statuses,
		CompletedStatus: string(StatusCompleted),
		ZeroStatus:      string(StatusPlanning),
		StatusDefaults: map[string]generic.StatusDefault{
			string(StatusInProgress):     generic.Fixed(30),
			string(StatusDataCollection): generic.Fixed(50),
			string(StatusAnalysis):       generic.Fixed(70),
			string(StatusReporting):      generic.Fixed(90),
			string(StatusOnHold):         generic.Keep(),
			string(StatusCancelled):      generic.Force(0),
		},
		ReopenPercentage: ReopenPercentage,
		LoadDefaults: []generic.LoadDefault{
			{Field: FieldPriority, Value: string(generic.PriorityMedium)},
			{Field: FieldDate, FromToday: true},
		},
		Bands: []generic.Band{
			{Min: 80, Color: "green"},
			{Min: 60, Color: "blue"},
			{Min: 40, Color: "orange"},
			{Min: 0, Color: "red"},
		},
	}
}
