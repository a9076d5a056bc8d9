package djvu

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ParsePageNumbers expands a page range string such as "17,37-42" into an
// ascending list of 1-based page numbers. An inverted range like "42-37"
// contributes nothing. An empty string means all pages and yields nil.
func ParsePageNumbers(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var result []int
	for _, part := range strings.Split(s, ",") {
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			x, err := strconv.Atoi(lo)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPageRange, part)
			}
			y, err := strconv.Atoi(hi)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPageRange, part)
			}
			for n := x; n <= y; n++ {
				result = append(result, n)
			}
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPageRange, part)
			}
			result = append(result, n)
		}
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}
