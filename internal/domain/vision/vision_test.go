package vision

import (
	"slices"
	"testing"

	"github.com/kailas-cloud/storefront/internal/domain/search/relevance"
)

func TestTop(t *testing.T) {
	a := Analysis{Keywords: []string{"Arduino", " ", "arduino", "board", "usb", "cable"}}

	got := a.Top(3)
	want := []string{"Arduino", "board", "usb"}
	if !slices.Equal(got, want) {
		t.Errorf("Top(3) = %v, want %v", got, want)
	}

	if got := a.Top(0); len(got) != 0 {
		t.Errorf("Top(0) = %v", got)
	}
}

func TestFromFilename(t *testing.T) {
	e := relevance.Default()
	tests := []struct {
		name string
		want []string
	}{
		{"uploads/IMG_arduino-uno_r3.jpg", []string{"img", "arduino", "uno", "r3"}},
		{"photo of the servo.png", []string{"servo"}},
		{"12345.jpeg", nil},
		{"", nil},
	}
	for _, tc := range tests {
		a := FromFilename(e, tc.name)
		if !slices.Equal(a.Keywords, tc.want) {
			t.Errorf("FromFilename(%q) = %v, want %v", tc.name, a.Keywords, tc.want)
		}
		if a.Source != SourceFilename || a.Confidence != FilenameConfidence {
			t.Errorf("unexpected source/confidence: %+v", a)
		}
	}
}
