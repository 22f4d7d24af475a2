package organization

import "github.com/sysmayal/tracking-engine/generic"

// Schema returns the organization derivation table.
func Schema() generic.Schema {
	statuses := make([]string, 0, len(AllStatuses()))
	for _, s := range AllStatuses() {
		statuses = append(statuses, string(s))
	}

	return generic.Schema{
		EntityType:  EntityType,
		Name:        "Distribution Organization",
		StatusField: FieldStatus,
		Statuses:    statuses,
		DateRules: []generic.DateRule{
			{Field: FieldAgreementExpiry, Kind: generic.DateExpiry, WindowDays: generic.DefaultExpiryWindow},
			{Field: FieldNextAuditDue, Kind: generic.DateAudit, WindowDays: generic.DefaultAuditWindow},
		},
		LookupRules: []generic.LookupRule{
			{Source: FieldType, Target: FieldRegulatoryStatus, Values: RegulatoryDefaults()},
		},
		LoadDefaults: []generic.LoadDefault{
			{Field: FieldStatus, Value: string(StatusActive)},
		},
	}
}
