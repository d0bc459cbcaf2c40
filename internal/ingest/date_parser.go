package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// monthNames maps English, French, German and Spanish month names and
// common abbreviations to their month.
var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January, "janvier": time.January, "januar": time.January, "enero": time.January, "ene": time.January,
	"february": time.February, "feb": time.February, "février": time.February, "fevrier": time.February, "februar": time.February, "febrero": time.February, "fév": time.February,
	"march": time.March, "mar": time.March, "mars": time.March, "märz": time.March, "marz": time.March, "marzo": time.March,
	"april": time.April, "apr": time.April, "avril": time.April, "abril": time.April, "abr": time.April, "avr": time.April,
	"may": time.May, "mai": time.May, "mayo": time.May,
	"june": time.June, "jun": time.June, "juin": time.June, "juni": time.June, "junio": time.June,
	"july": time.July, "jul": time.July, "juillet": time.July, "juli": time.July, "julio": time.July, "juil": time.July,
	"august": time.August, "aug": time.August, "août": time.August, "aout": time.August, "agosto": time.August, "ago": time.August,
	"september": time.September, "sep": time.September, "sept": time.September, "septembre": time.September, "septiembre": time.September,
	"october": time.October, "oct": time.October, "octobre": time.October, "oktober": time.October, "octubre": time.October, "okt": time.October,
	"november": time.November, "nov": time.November, "novembre": time.November, "noviembre": time.November,
	"december": time.December, "dec": time.December, "décembre": time.December, "decembre": time.December, "dezember": time.December, "diciembre": time.December, "dic": time.December, "déc": time.December, "dez": time.December,
}

var (
	isoDateRe    = regexp.MustCompile(`\b(20\d{2}|19\d{2})-(\d{1,2})-(\d{1,2})\b`)
	dottedDateRe = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
	slashDateRe  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	dayMonthRe   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th|er)?[\s\-]+(?:de\s+)?([\p{L}]{3,10})\.?[\s\-,]+(?:de\s+|del\s+)?(\d{4})\b`)
	monthDayRe   = regexp.MustCompile(`(?i)\b([\p{L}]{3,10})\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	monthYearRe  = regexp.MustCompile(`(?i)\b([\p{L}]{3,10})\.?\s+(\d{4})\b`)
	timeOfDayRe  = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(am|pm|a\.m\.|p\.m\.)?`)
)

// ParseDeadline finds the first recognisable date in free text. Date-only
// values resolve to the end of that day in UTC. Slash dates are read
// day-first unless the first number cannot be a day-in-month pair.
func ParseDeadline(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t.UTC(), true
	}

	day, month, year, ok := findDate(text)
	if !ok {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, 23, 59, 59, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	if m := timeOfDayRe.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		switch strings.ToLower(strings.ReplaceAll(m[3], ".", "")) {
		case "pm":
			if h < 12 {
				h += 12
			}
		case "am":
			if h == 12 {
				h = 0
			}
		}
		if h < 24 && min < 60 {
			t = time.Date(year, month, day, h, min, 0, 0, time.UTC)
		}
	}
	return t, true
}

func findDate(text string) (int, time.Month, int, bool) {
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 {
			return d, time.Month(mo), y, true
		}
	}
	for _, m := range dayMonthRe.FindAllStringSubmatch(text, -1) {
		if mo, ok := lookupMonth(m[2]); ok {
			d, _ := strconv.Atoi(m[1])
			y, _ := strconv.Atoi(m[3])
			return d, mo, y, true
		}
	}
	for _, m := range monthDayRe.FindAllStringSubmatch(text, -1) {
		if mo, ok := lookupMonth(m[1]); ok {
			d, _ := strconv.Atoi(m[2])
			y, _ := strconv.Atoi(m[3])
			return d, mo, y, true
		}
	}
	for _, re := range []*regexp.Regexp{dottedDateRe, slashDateRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			a, _ := strconv.Atoi(m[1])
			b, _ := strconv.Atoi(m[2])
			y, _ := strconv.Atoi(m[3])
			if b > 12 && a <= 12 {
				a, b = b, a
			}
			if b >= 1 && b <= 12 {
				return a, time.Month(b), y, true
			}
		}
	}
	for _, m := range monthYearRe.FindAllStringSubmatch(text, -1) {
		if mo, ok := lookupMonth(m[1]); ok {
			y, _ := strconv.Atoi(m[2])
			last := time.Date(y, mo+1, 0, 0, 0, 0, 0, time.UTC).Day()
			return last, mo, y, true
		}
	}
	return 0, 0, 0, false
}

func lookupMonth(name string) (time.Month, bool) {
	mo, ok := monthNames[strings.ToLower(strings.TrimSuffix(name, "."))]
	return mo, ok
}
