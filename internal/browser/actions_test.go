package browser

import "testing"

func TestKeyToCDP(t *testing.T) {
	tests := []struct {
		key      string
		wantCode string
	}{
		{"a", "KeyA"},
		{"Z", "KeyZ"},
		{"5", "Digit5"},
		{"-", "Minus"},
		{"Enter", "Enter"},
		{"Tab", "Tab"},
	}
	for _, tt := range tests {
		_, code, _ := keyToCDP(tt.key)
		if code != tt.wantCode {
			t.Errorf("keyToCDP(%q) code = %q, want %q", tt.key, code, tt.wantCode)
		}
	}
}

func TestModifiersToBits(t *testing.T) {
	bits := modifiersToBits([]string{"Control", "Shift"})
	want := modifierBits["Control"] | modifierBits["Shift"]
	if bits != want {
		t.Errorf("modifiersToBits = %d, want %d", bits, want)
	}
	if modifiersToBits(nil) != 0 {
		t.Error("modifiersToBits(nil) should be 0")
	}
}
