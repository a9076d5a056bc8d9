package djvu

import (
	"errors"
	"slices"
	"testing"
)

func TestParsePageNumbers(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"", nil},
		{"1", []int{1}},
		{"17", []int{17}},
		{"17,37-42", []int{17, 37, 38, 39, 40, 41, 42}},
		{"37-42,17", []int{17, 37, 38, 39, 40, 41, 42}},
		{"42-37", nil},
		{"42-37,5", []int{5}},
		{"3,1,2,2", []int{1, 2, 3}},
		{"7-7", []int{7}},
	}
	for _, tt := range tests {
		got, err := ParsePageNumbers(tt.in)
		if err != nil {
			t.Errorf("ParsePageNumbers(%q) returned error: %v", tt.in, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("ParsePageNumbers(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePageNumbersInvalid(t *testing.T) {
	for _, in := range []string{"x", "1,", "1-", "-3", "1-2-3", "1,,2", "2.5"} {
		_, err := ParsePageNumbers(in)
		if !errors.Is(err, ErrInvalidPageRange) {
			t.Errorf("ParsePageNumbers(%q) error = %v, want ErrInvalidPageRange", in, err)
		}
	}
}
