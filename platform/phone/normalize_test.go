package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{"local indian mobile", "98765 43210", "IN", "+919876543210"},
		{"default region", "098765-43210", "", "+919876543210"},
		{"already international", "+1 650-253-0000", "IN", "+16502530000"},
		{"garbage is returned trimmed", "  call me  ", "IN", "call me"},
		{"empty", "   ", "IN", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164(tc.input, tc.region); got != tc.want {
				t.Fatalf("NormalizeE164(%q, %q) = %q, want %q", tc.input, tc.region, got, tc.want)
			}
		})
	}
}

func TestIsDialable(t *testing.T) {
	if !IsDialable("9876543210", "IN") {
		t.Fatal("expected indian mobile to be dialable")
	}
	if IsDialable("12345", "IN") {
		t.Fatal("expected short number to be rejected")
	}
	if IsDialable("", "IN") {
		t.Fatal("expected empty number to be rejected")
	}
}
