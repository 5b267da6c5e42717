package classifier

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
	}{
		{"Monthly", Recurring},
		{"recurring", Recurring},
		{"Annual", Recurring},
		{"One-Time", OneTime},
		{"one time gift", OneTime},
		{"One-time pledge", OneTime},
		{"", Unspecified},
		{"  ", Unspecified},
		{"N/A", Unspecified},
		{"mystery", Unspecified},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Classify(tt.raw); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestClassifyValueMissing(t *testing.T) {
	if got := ClassifyValue("Monthly", false); got != Unspecified {
		t.Errorf("missing cell = %q, want %q", got, Unspecified)
	}
	if got := ClassifyValue("Monthly", true); got != Recurring {
		t.Errorf("present cell = %q, want %q", got, Recurring)
	}
}
