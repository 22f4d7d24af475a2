package compliance

import "github.com/sysmayal/tracking-engine/generic"

// Schema returns the compliance derivation table.
func Schema() generic.Schema {
	statuses := make([]string, 0, len(AllStatuses()))
	for _, s := range AllStatuses() {
		statuses = append(statuses, string(s))
	}

	return generic.Schema{
		EntityType:      EntityType,
		Name:            "Product Compliance",
		StatusField:     FieldStatus,
		PercentageField: FieldPercentage,
		Statuses:        statuses,
		CompletedStatus: string(StatusCompliant),
		StatusDefaults: map[string]generic.StatusDefault{
			string(StatusPartiallyCompliant): generic.Fixed(70),
			string(StatusPendingReview):      generic.Fixed(50),
			string(StatusNonCompliant):       generic.Fixed(20),
			string(StatusExpired):            generic.Force(0),
		},
		DateRules: []generic.DateRule{
			{Field: FieldExpiryDate, Kind: generic.DateExpiry, WindowDays: ExpiryDueWindowDays},
			{Field: FieldNextReviewDate, Kind: generic.DateReview, WindowDays: ReviewDueWindowDays},
		},
		OffsetRules: []generic.OffsetRule{
			{Source: FieldApprovalDate, Target: FieldExpiryDate, Months: ValidityMonths},
		},
		StatusDateRules: []generic.StatusDateRule{
			{Status: string(StatusPendingReview), Target: FieldNextReviewDate, Days: PendingReviewDays},
		},
		ScoreRules: []generic.ScoreRule{{
			Triggers:   []generic.Field{FieldApprovalStatus, FieldTestingStatus},
			RequireAll: []generic.Field{FieldApprovalStatus, FieldTestingStatus},
			Components: []generic.ScoreComponent{
				{Field: FieldApprovalStatus, Points: map[string]int{ApprovalApproved: 50, ApprovalUnderReview: 25}},
				{Field: FieldTestingStatus, Points: map[string]int{TestingCompleted: 30, TestingInProgress: 15}},
				{Field: FieldRequiredTests, PresentPoints: 10},
				{Field: FieldCertificationsHeld, PresentPoints: 10},
			},
			Cap: 100,
		}},
		LoadDefaults: []generic.LoadDefault{
			{Field: FieldStatus, Value: string(StatusPendingReview)},
			{Field: FieldRiskLevel, Value: "Medium"},
			{Field: FieldTestingStatus, Value: TestingNotStarted},
			{Field: FieldApprovalStatus, Value: ApprovalNotSubmitted},
			{Field: FieldNextReviewDate, FromToday: true, Months: ReviewCycleMonths},
		},
		Bands: []generic.Band{
			{Min: 80, Color: "green"},
			{Min: 60, Color: "orange"},
			{Min: 0, Color: "red"},
		},
	}
}
