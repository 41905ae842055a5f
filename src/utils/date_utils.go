package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var financialYearRe = regexp.MustCompile(`^(?:FY\s*)?(\d{4})(?:\s*-\s*(\d{2}|\d{4}))?$`)

// ParseFinancialYear accepts "2023", "2023-24", "2023-2024" and "FY 2023-2024"
// and returns the starting year.
func ParseFinancialYear(s string) (int, error) {
	m := financialYearRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("invalid financial year %q", s)
	}
	start, _ := strconv.Atoi(m[1])
	if m[2] != "" {
		end, _ := strconv.Atoi(m[2])
		if len(m[2]) == 2 {
			end += start / 100 * 100
			if end < start {
				end += 100
			}
		}
		if end != start+1 {
			return 0, fmt.Errorf("financial year %q does not span consecutive years", s)
		}
	}
	return start, nil
}
