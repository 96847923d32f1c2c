package converter

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		total   int
		want    []int
		wantErr bool
	}{
		{name: "all", spec: "all", total: 3, want: []int{0, 1, 2}},
		{name: "all any case", spec: "ALL", total: 2, want: []int{0, 1}},
		{name: "blank means all", spec: "  ", total: 2, want: []int{0, 1}},
		{name: "single pages", spec: "1,3", total: 5, want: []int{0, 2}},
		{name: "inclusive range", spec: "2-4", total: 5, want: []int{1, 2, 3}},
		{name: "range clamped to document", spec: "3-10", total: 4, want: []int{2, 3}},
		{name: "range starting at zero", spec: "0-2", total: 4, want: []int{0, 1}},
		{name: "out of range single dropped", spec: "9", total: 3, want: []int{}},
		{name: "page zero dropped", spec: "0", total: 3, want: []int{}},
		{name: "overlaps deduplicated and sorted", spec: "5, 1-3, 2", total: 6, want: []int{0, 1, 2, 4}},
		{name: "whitespace around parts", spec: " 1 - 2 , 4 ", total: 4, want: []int{0, 1, 3}},
		{name: "trailing comma ignored", spec: "1,", total: 2, want: []int{0}},
		{name: "reversed range is empty", spec: "4-2", total: 5, want: []int{}},
		{name: "empty document", spec: "all", total: 0, want: []int{}},
		{name: "letters", spec: "one", total: 3, wantErr: true},
		{name: "open ended range", spec: "2-", total: 3, wantErr: true},
		{name: "range with letters", spec: "a-b", total: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePageRange(tt.spec, tt.total)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPageRange) {
					t.Fatalf("ParsePageRange(%q) error = %v, want ErrInvalidPageRange", tt.spec, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePageRange(%q) unexpected error: %v", tt.spec, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParsePageRange(%q) mismatch (-want +got):\n%s", tt.spec, diff)
			}
		})
	}
}

func TestValidatePageRange(t *testing.T) {
	for _, ok := range []string{"", "all", "1", "1-3,7", "2,"} {
		if err := ValidatePageRange(ok); err != nil {
			t.Errorf("ValidatePageRange(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"x", "1-y", "-"} {
		if err := ValidatePageRange(bad); err == nil {
			t.Errorf("ValidatePageRange(%q) = nil, want error", bad)
		}
	}
}
