package chunk

import (
	"testing"
)

func TestResolveID(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"simple", "report.pdf", "report.pdf"},
		{"uppercase", "Report.PDF", "report.pdf"},
		{"single space", "annual report.pdf", "annual-report.pdf"},
		{"whitespace run", "annual  \t report.pdf", "annual-report.pdf"},
		{"leading and trailing", " cv.pdf ", "-cv.pdf-"},
		{"empty", "", ""},
		{"only whitespace", "   ", "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveID(tt.filename); got != tt.want {
				t.Errorf("ResolveID(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestResolveID_Stable(t *testing.T) {
	a := ResolveID("Khokhar et al. 2010 - Surface EMG.pdf")
	b := ResolveID("Khokhar et al. 2010 - Surface EMG.pdf")
	if a != b {
		t.Errorf("ResolveID not stable: %q vs %q", a, b)
	}
}

func TestTimeID(t *testing.T) {
	id := TimeID()
	if id == "" {
		t.Fatal("TimeID returned empty string")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			t.Errorf("TimeID() = %q, want digits only", id)
		}
	}
}
