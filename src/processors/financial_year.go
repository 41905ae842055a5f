package processors

import (
	"fmt"
	"sort"
	"time"

	"github.com/username/notefolio/backend/src/models"
)

// FinancialYearDates returns the bounds of the Indian financial year starting in
// April of year: April 1 00:00:00 to March 31 23:59:59 of the following year.
func FinancialYearDates(year int) (time.Time, time.Time) {
	start := time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.March, 31, 23, 59, 59, 0, time.UTC)
	return start, end
}

// FinancialYearOf returns the starting year of the financial year containing t.
func FinancialYearOf(t time.Time) int {
	if t.Month() >= time.April {
		return t.Year()
	}
	return t.Year() - 1
}

func CurrentFinancialYear(now time.Time) int {
	return FinancialYearOf(now)
}

// FinancialYearLabel formats a year as "FY 2023-2024".
func FinancialYearLabel(year int) string {
	return fmt.Sprintf("FY %d-%d", year, year+1)
}

func inFinancialYear(t time.Time, year int) bool {
	start, end := FinancialYearDates(year)
	return !t.Before(start) && !t.After(end)
}

// AvailableFinancialYears lists, newest first, every financial year containing at
// least one SELL.
func AvailableFinancialYears(txs []models.Transaction) []int {
	seen := make(map[int]bool)
	for _, tx := range txs {
		if tx.IsSell() {
			seen[FinancialYearOf(tx.TransactionDate)] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}
