// Package organization tracks distribution organizations: distributors,
// retailers, suppliers and the regulators they answer to.
//
// Organizations carry no progress percentage. The engine only raises
// agreement expiry and audit alerts for them, and fills in the regulatory
// status implied by the organization type.
package organization

import "github.com/sysmayal/tracking-engine/generic"

const EntityType generic.EntityType = "Organization"

// =============================================================================
// FIELDS
// =============================================================================

const (
	FieldName             generic.Field = "organization_name"
	FieldType             generic.Field = "organization_type"
	FieldStatus           generic.Field = "status"
	FieldPriority         generic.Field = "priority"
	FieldTerritory        generic.Field = "territory"
	FieldRegulatoryStatus generic.Field = "regulatory_status"
	FieldAgreementExpiry  generic.Field = "agreement_expiry"
	FieldNextAuditDue     generic.Field = "next_audit_due"
)

// =============================================================================
// STATUSES AND TYPES
// =============================================================================

type Status string

const (
	StatusActive     Status = "Active"
	StatusInactive   Status = "Inactive"
	StatusPending    Status = "Pending"
	StatusSuspended  Status = "Suspended"
	StatusTerminated Status = "Terminated"
)

func AllStatuses() []Status {
	return []Status{StatusActive, StatusInactive, StatusPending, StatusSuspended, StatusTerminated}
}

// Type is the organization's role in the distribution chain.
type Type string

const (
	TypeDistributor    Type = "Distributor"
	TypeRetailer       Type = "Retailer"
	TypeWholesaler     Type = "Wholesaler"
	TypeSupplier       Type = "Supplier"
	TypeManufacturer   Type = "Manufacturer"
	TypeRegulatoryBody Type = "Regulatory Body"
	TypeConsultant     Type = "Consultant"
)

// Regulatory statuses implied by the organization type.
const (
	RegulatoryPendingReview = "Pending Review"
	RegulatoryNotApplicable = "Not Applicable"
)

// RegulatoryDefaults maps an organization type to its initial regulatory status.
func RegulatoryDefaults() map[string]string {
	return map[string]string{
		string(TypeDistributor):    RegulatoryPendingReview,
		string(TypeRetailer):       RegulatoryPendingReview,
		string(TypeWholesaler):     RegulatoryPendingReview,
		string(TypeSupplier):       RegulatoryPendingReview,
		string(TypeManufacturer):   RegulatoryPendingReview,
		string(TypeRegulatoryBody): RegulatoryNotApplicable,
		string(TypeConsultant):     RegulatoryNotApplicable,
	}
}

func init() {
	generic.DefaultRegistry.MustRegister(Schema())
}
