package auth

// Role represents a user role.
type Role string

const (
	RoleAttendant      Role = "attendant"
	RoleStationManager Role = "station_manager"
	RoleDealer         Role = "dealer"
	RoleOMC            Role = "omc"
	RoleAdmin          Role = "admin"
)

// Capability is a permission checked before an operation runs.
type Capability string

const (
	CapView      Capability = "commission:view"
	CapCalculate Capability = "commission:calculate"
	CapSettle    Capability = "commission:settle"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleAttendant, RoleStationManager, RoleDealer, RoleOMC, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// HasCapability reports whether role grants the capability.
func HasCapability(role Role, capability Capability) bool {
	switch capability {
	case CapView:
		_, ok := NormalizeRole(string(role))
		return ok
	case CapCalculate, CapSettle:
		return role == RoleAdmin || role == RoleOMC
	default:
		return false
	}
}
