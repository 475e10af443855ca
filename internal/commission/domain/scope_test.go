package commission

import "testing"

func TestScope_Allows(t *testing.T) {
	rec := &Record{StationID: "s1", DealerID: "d1", OMCID: "o1"}
	cases := []struct {
		name  string
		scope Scope
		want  bool
	}{
		{"admin", UnrestrictedScope(), true},
		{"own omc", Scope{OMCID: "o1"}, true},
		{"other omc", Scope{OMCID: "o2"}, false},
		{"own dealer", Scope{DealerID: "d1"}, true},
		{"other dealer", Scope{DealerID: "d2"}, false},
		{"own station", Scope{StationID: "s1"}, true},
		{"other station", Scope{StationID: "s2"}, false},
		{"empty", Scope{}, false},
	}
	for _, tc := range cases {
		if got := tc.scope.Allows(rec); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestScope_Narrow(t *testing.T) {
	scope := Scope{DealerID: "d1"}

	narrowed, ok := scope.Narrow(Filter{StationID: "s9"})
	if !ok || narrowed.DealerID != "d1" || narrowed.StationID != "s9" {
		t.Fatalf("expected dealer constraint added, got %+v ok=%v", narrowed, ok)
	}
	if _, ok := scope.Narrow(Filter{DealerID: "d2"}); ok {
		t.Fatalf("expected conflicting dealer filter to be rejected")
	}
	if _, ok := (Scope{}).Narrow(Filter{}); ok {
		t.Fatalf("expected empty scope to grant nothing")
	}
}
