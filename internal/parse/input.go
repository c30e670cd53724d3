package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
	CodePrefix  = "VPA"
	codeDigits  = 6
)

var (
	separatorRe = regexp.MustCompile(`[\s\-().]+`)
	mobileRe    = regexp.MustCompile(`^\d{10}$`)
	plateRe     = regexp.MustCompile(`^[A-Z]{2}\d{1,2}[A-Z]{0,3}\d{4}$`)
	clockRe     = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	codeRe      = regexp.MustCompile(`^VPA(\d{6})$`)
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Mobile strips separators and a +91 / 0 trunk prefix, then requires exactly
// ten digits.
func Mobile(raw string) (string, error) {
	s := separatorRe.ReplaceAllString(strings.TrimSpace(raw), "")
	switch {
	case strings.HasPrefix(s, "+91") && len(s) == 13:
		s = s[3:]
	case strings.HasPrefix(s, "91") && len(s) == 12:
		s = s[2:]
	case strings.HasPrefix(s, "0") && len(s) == 11:
		s = s[1:]
	}
	if !mobileRe.MatchString(s) {
		return "", fmt.Errorf("mobile number must be exactly 10 digits: %q", raw)
	}
	return s, nil
}

// VehicleNumber upper-cases a registration plate and removes separators,
// e.g. "mh 12-ab 1234" becomes "MH12AB1234".
func VehicleNumber(raw string) (string, error) {
	s := strings.ToUpper(separatorRe.ReplaceAllString(strings.TrimSpace(raw), ""))
	if !plateRe.MatchString(s) {
		return "", fmt.Errorf("vehicle number %q is not a valid registration plate", raw)
	}
	return s, nil
}

// Date parses a YYYY-MM-DD calendar date as midnight in loc.
func Date(raw string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be formatted as YYYY-MM-DD", raw)
	}
	return d, nil
}

// ClockTime parses an HH:MM time of day. Seconds are not accepted.
func ClockTime(raw string) (Clock, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Clock{}, fmt.Errorf("time %q must be formatted as HH:MM", raw)
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if h > 23 || minute > 59 {
		return Clock{}, fmt.Errorf("time %q is out of range", raw)
	}
	return Clock{Hour: h, Minute: minute}, nil
}

// At combines a calendar date and a wall-clock time into an instant in loc.
func At(date time.Time, c Clock, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// FormatCode renders the n-th approval code, e.g. 7 -> VPA000007.
func FormatCode(n int64) string {
	return fmt.Sprintf("%s%0*d", CodePrefix, codeDigits, n)
}

// CodeNumber returns the numeric suffix of a well-formed approval code.
func CodeNumber(code string) (int64, bool) {
	m := codeRe.FindStringSubmatch(code)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Code normalises user-typed approval codes ("vpa 000123" -> "VPA000123").
func Code(raw string) string {
	return strings.ToUpper(separatorRe.ReplaceAllString(strings.TrimSpace(raw), ""))
}
