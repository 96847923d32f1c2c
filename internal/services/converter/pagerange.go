package converter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPageRange is returned for page specs that are not numbers.
var ErrInvalidPageRange = errors.New("invalid page range")

// pageSpan is an inclusive 1-based range as written by the user.
type pageSpan struct{ from, to int }

// parseSpans checks the syntax of a page spec. all is true for "all" or blank.
func parseSpans(spec string) (spans []pageSpan, all bool, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "all") {
		return nil, true, nil
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if from, to, ok := strings.Cut(part, "-"); ok {
			a, errA := strconv.Atoi(strings.TrimSpace(from))
			b, errB := strconv.Atoi(strings.TrimSpace(to))
			if errA != nil || errB != nil {
				return nil, false, fmt.Errorf("%w: %q", ErrInvalidPageRange, part)
			}
			spans = append(spans, pageSpan{from: a, to: b})
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %q", ErrInvalidPageRange, part)
		}
		spans = append(spans, pageSpan{from: n, to: n})
	}
	return spans, false, nil
}

// ValidatePageRange reports syntax errors without knowing the page count.
func ValidatePageRange(spec string) error {
	_, _, err := parseSpans(spec)
	return err
}

// ParsePageRange turns a spec like "1-3,5" into sorted, unique, 0-based
// page indexes. "all" or a blank spec selects every page. Ranges are
// inclusive and clamped to the document; single pages outside it are dropped.
func ParsePageRange(spec string, totalPages int) ([]int, error) {
	spans, all, err := parseSpans(spec)
	if err != nil {
		return nil, err
	}

	if all {
		pages := make([]int, totalPages)
		for i := range pages {
			pages[i] = i
		}
		return pages, nil
	}

	selected := make([]bool, totalPages)
	for _, s := range spans {
		from := max(s.from-1, 0)
		to := min(s.to, totalPages)
		for p := from; p < to; p++ {
			selected[p] = true
		}
	}

	pages := []int{}
	for p, ok := range selected {
		if ok {
			pages = append(pages, p)
		}
	}
	return pages, nil
}
