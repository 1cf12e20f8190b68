package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/user/animerank-crawler/internal/domain"
)

var months = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// ParseAired parses "Apr 5, 2009 to Jul 4, 2010" style ranges. Each side is
// "<mon> <day> <year>", "<mon> <year>" or "<year>"; a side that does not
// parse is nil and never affects the other one.
func ParseAired(text string) domain.DateRange {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.DateRange{}
	}
	sides := strings.Split(text, " to ")

	r := domain.DateRange{Points: len(sides)}
	r.Start = parseDate(sides[0])
	if len(sides) > 1 {
		r.End = parseDate(sides[1])
	}
	return r
}

// RunLengthDays is the whole number of days between both ends of r, or nil
// when either end is missing.
func RunLengthDays(r domain.DateRange) *int {
	if r.Points < 2 || r.Start == nil || r.End == nil {
		return nil
	}
	days := int(math.Floor(r.End.Sub(*r.Start).Hours() / 24))
	return &days
}

func parseDate(s string) *time.Time {
	parts := strings.Fields(strings.ReplaceAll(s, ",", " "))

	var (
		month = time.January
		day   = 1
		year  int
		err   error
		ok    bool
	)
	switch len(parts) {
	case 3:
		if month, ok = parseMonth(parts[0]); !ok {
			return nil
		}
		if day, err = strconv.Atoi(parts[1]); err != nil {
			return nil
		}
		year, err = strconv.Atoi(parts[2])
	case 2:
		if month, ok = parseMonth(parts[0]); !ok {
			return nil
		}
		year, err = strconv.Atoi(parts[1])
	case 1:
		year, err = strconv.Atoi(parts[0])
	default:
		return nil
	}
	if err != nil || year < 1 || day < 1 {
		return nil
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		// time.Date rolls Feb 30 over into March.
		return nil
	}
	return &t
}

func parseMonth(s string) (time.Month, bool) {
	if len(s) < 3 {
		return 0, false
	}
	m, ok := months[strings.ToLower(s[:3])]
	return m, ok
}
