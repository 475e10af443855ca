package commission

// Scope restricts which records an actor may see or act on.
// Exactly one of the identifiers is set unless Unrestricted.
type Scope struct {
	Unrestricted bool
	OMCID        string
	DealerID     string
	StationID    string
}

// UnrestrictedScope grants access to every record.
func UnrestrictedScope() Scope { return Scope{Unrestricted: true} }

// IsEmpty reports whether the scope grants nothing.
func (s Scope) IsEmpty() bool {
	return !s.Unrestricted && s.OMCID == "" && s.DealerID == "" && s.StationID == ""
}

// AllowsOwner reports whether an entity with the given ownership is visible.
func (s Scope) AllowsOwner(stationID, dealerID, omcID string) bool {
	switch {
	case s.Unrestricted:
		return true
	case s.OMCID != "":
		return s.OMCID == omcID
	case s.DealerID != "":
		return s.DealerID == dealerID
	case s.StationID != "":
		return s.StationID == stationID
	default:
		return false
	}
}

// Allows reports whether the record is visible.
func (s Scope) Allows(r *Record) bool {
	if r == nil {
		return false
	}
	return s.AllowsOwner(r.StationID, r.DealerID, r.OMCID)
}

// Narrow intersects a caller filter with the scope. It returns false when the
// filter asks for data outside the scope, which must yield an empty result.
func (s Scope) Narrow(f Filter) (Filter, bool) {
	if s.Unrestricted {
		return f, true
	}
	switch {
	case s.OMCID != "":
		if f.OMCID != "" && f.OMCID != s.OMCID {
			return f, false
		}
		f.OMCID = s.OMCID
	case s.DealerID != "":
		if f.DealerID != "" && f.DealerID != s.DealerID {
			return f, false
		}
		f.DealerID = s.DealerID
	case s.StationID != "":
		if f.StationID != "" && f.StationID != s.StationID {
			return f, false
		}
		f.StationID = s.StationID
	default:
		return f, false
	}
	return f, true
}

// CacheKey returns a stable identifier for cache partitioning.
func (s Scope) CacheKey() string {
	switch {
	case s.Unrestricted:
		return "all"
	case s.OMCID != "":
		return "omc:" + s.OMCID
	case s.DealerID != "":
		return "dealer:" + s.DealerID
	case s.StationID != "":
		return "station:" + s.StationID
	default:
		return "none"
	}
}
