package commission

// Status is the lifecycle state of a commission record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCalculated Status = "calculated"
	StatusApproved   Status = "approved"
	StatusPaid       Status = "paid"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusPending, StatusCalculated, StatusApproved, StatusPaid, StatusCancelled:
		return Status(value), true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// IsOpen reports whether the record still awaits payment.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusCalculated || s == StatusApproved
}

// CanTransition reports whether from -> to is on the legal lifecycle graph.
// When approval is optional, calculated records may be paid directly.
func CanTransition(from, to Status, approvalRequired bool) bool {
	switch to {
	case StatusCalculated:
		return from == StatusPending
	case StatusApproved:
		return from == StatusCalculated
	case StatusPaid:
		if from == StatusApproved {
			return true
		}
		return !approvalRequired && from == StatusCalculated
	case StatusCancelled:
		return from.IsOpen()
	default:
		return false
	}
}

// DataSource tags which upstream ledger produced the period totals.
type DataSource string

const (
	DataSourceSales     DataSource = "sales"
	DataSourceTankStock DataSource = "tank_stock"
)

// RateSource tags which level of the rate precedence produced the rate.
type RateSource string

const (
	RateSourceOverride     RateSource = "override"
	RateSourceOrganization RateSource = "organization"
	RateSourceSystem       RateSource = "system"
)
