package orderstatus

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, Unknown},
		{"numeric filled", 5, Filled},
		{"numeric string rejected", "14", Rejected},
		{"out of range number", 99, Unknown},
		{"full name passthrough", "PartialFilledStatus", PartialFilled},
		{"british spelling", "CancelledStatus", Canceled},
		{"short filled", "Filled", Filled},
		{"short cancelled", "Cancelled", Canceled},
		{"lower case", "partialfilled", PartialFilled},
		{"legacy spelling", "VarietiesNotReported", VariancesNotReported},
		{"unknown kept", "SomethingElse", "SomethingElse"},
		{"empty", "", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatusGroups(t *testing.T) {
	if !IsTerminal("Filled") || !IsTerminal(15) || IsTerminal("New") {
		t.Fatalf("unexpected terminal classification")
	}

	if !IsPending("NewStatus") || !IsPending("PendingCancelStatus") || IsPending(Filled) {
		t.Fatalf("unexpected pending classification")
	}

	if !IsFilled("PartialFilled") || IsFilled("Rejected") {
		t.Fatalf("unexpected filled classification")
	}

	if got := Display("CanceledStatus"); got != "Cancelled" {
		t.Fatalf("expected display Cancelled, got %s", got)
	}
}
