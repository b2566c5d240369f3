package chrono

import (
	"time"
	_ "time/tzdata"
)

// DayLayout is the date format the registry search form expects.
const DayLayout = "01/02/2006"

// API is the interface that anything depending on the system clock should use.
type API interface {
	Now() time.Time
	Location() *time.Location
}

// StandardImpl reads the system clock and reports it in the registry's timezone.
type StandardImpl struct {
	location *time.Location
}

func NewStandardImpl() (StandardImpl, error) {
	// the registry publishes approvals on eastern time
	location, err := time.LoadLocation("America/New_York")
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// FixedImpl always returns the same instant.
type FixedImpl struct {
	At time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.At
}

func (f FixedImpl) Location() *time.Location {
	return f.At.Location()
}

// DaysAgo returns the calendar day n days before the current day.
func DaysAgo(api API, n int) time.Time {
	now := api.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, api.Location())
	return day.AddDate(0, 0, -n)
}

// ParseDay parses a day in DayLayout in the location of api.
func ParseDay(api API, value string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, value, api.Location())
}

func FormatDay(day time.Time) string {
	return day.Format(DayLayout)
}
