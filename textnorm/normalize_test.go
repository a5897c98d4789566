package textnorm_test

import (
	"testing"

	"github.com/ksugimoto/hislipd/textnorm"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"query unchanged", "*IDN?", "*IDN?"},
		{"numeric argument", "VOLT 5", "VOLT ?"},
		{"float argument", "VOLT 3.3", "VOLT ?"},
		{"multiple args", "CURR:RANGE 1, 10", "CURR:RANGE ?, ?"},
		{"whitespace collapse", "VOLT  \t 5", "VOLT ?"},
		{"no replace in identifier", "CH1:VOLT 5", "CH1:VOLT ?"},
		{"trailing newline", "*IDN?\n", "*IDN?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := textnorm.Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q)\n got  %q\n want %q", tt.in, got, tt.want)
			}
		})
	}
}
