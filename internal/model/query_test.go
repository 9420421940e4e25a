package model

import "testing"

func TestQuery_ID_Normalization(t *testing.T) {
	tests := []struct {
		name string
		a, b Query
		same bool
	}{
		{
			name: "case insensitive",
			a:    Query{Term: "Coffee Shops", Location: "Austin, TX"},
			b:    Query{Term: "coffee shops", Location: "austin, tx"},
			same: true,
		},
		{
			name: "whitespace collapsed",
			a:    Query{Term: "coffee  shops ", Location: " Austin"},
			b:    Query{Term: "coffee shops", Location: "Austin"},
			same: true,
		},
		{
			name: "different terms differ",
			a:    Query{Term: "coffee shops", Location: "Austin"},
			b:    Query{Term: "tea shops", Location: "Austin"},
			same: false,
		},
		{
			name: "location is part of identity",
			a:    Query{Term: "coffee shops", Location: "Austin"},
			b:    Query{Term: "coffee shops", Location: "Dallas"},
			same: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.ID() == tt.b.ID(); got != tt.same {
				t.Errorf("ID equality = %v, want %v (%q vs %q)", got, tt.same, tt.a.ID(), tt.b.ID())
			}
		})
	}
}

func TestQuery_String(t *testing.T) {
	q := Query{Term: "coffee shops", Location: "Austin"}
	if q.String() != "coffee shops, Austin" {
		t.Errorf("unexpected string: %q", q.String())
	}
	q = Query{Term: "coffee shops"}
	if q.String() != "coffee shops" {
		t.Errorf("unexpected string without location: %q", q.String())
	}
}

func TestProviderInstance_ID(t *testing.T) {
	inst := ProviderInstance{Role: RoleEmailFinder, Service: "hunter", Ordinal: 2}
	if inst.ID() != "hunter#2" {
		t.Errorf("expected hunter#2, got %s", inst.ID())
	}
}

func TestCompany_Key_Collapses(t *testing.T) {
	a := Company{Name: "Blue Bottle Coffee", Address: "123 Main St", URL: "https://bluebottle.com"}
	b := Company{Name: "blue bottle  coffee", Address: "123  Main St", URL: "HTTPS://bluebottle.com "}
	if a.Key() != b.Key() {
		t.Errorf("expected identical keys, got %q vs %q", a.Key(), b.Key())
	}

	c := Company{Name: "Blue Bottle Coffee", Address: "456 Oak Ave", URL: "https://bluebottle.com"}
	if a.Key() == c.Key() {
		t.Error("different addresses must produce different keys")
	}
}
