package capsule

import (
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/timecapsule/internal/errors"
)

// Layouts accepted for the two halves of a schedule.
const (
	DateLayout       = "2006-01-02"
	TimeLayout       = "15:04"
	TimeLayoutSecond = "15:04:05"
)

const (
	msPerMinute = int64(time.Minute / time.Millisecond)
	msPerHour   = int64(time.Hour / time.Millisecond)
	msPerDay    = 24 * msPerHour
)

// ReadyText is what a countdown renders once the target has passed.
const ReadyText = "Ready to send!"

// ParseSchedule combines a YYYY-MM-DD date and an HH:MM[:SS] time into one
// wall-clock instant in loc. A nil loc means time.Local. No UTC normalization
// is applied; wall-clock times skipped by a DST jump resolve the way
// time.Date does.
func ParseSchedule(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, errors.NewInvalidSchedule(date, clock, err)
	}

	layout := TimeLayout
	if strings.Count(clock, ":") == 2 {
		layout = TimeLayoutSecond
	}
	tod, err := time.Parse(layout, clock)
	if err != nil {
		return time.Time{}, errors.NewInvalidSchedule(date, clock, err)
	}

	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, loc), nil
}

// Countdown is the human-readable breakdown of the time left until a target.
type Countdown struct {
	Ready   bool `json:"ready"`
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
}

// TimeUntil decomposes target-now into whole days, then hours of the
// remainder, then minutes of that remainder, each floored. Ready is set iff
// now is at or after target, in which case the units are zero.
func TimeUntil(target, now time.Time) Countdown {
	if !now.Before(target) {
		return Countdown{Ready: true}
	}

	ms := target.Sub(now).Milliseconds()
	return Countdown{
		Days:    int(ms / msPerDay),
		Hours:   int(ms % msPerDay / msPerHour),
		Minutes: int(ms % msPerHour / msPerMinute),
	}
}

// Milliseconds reconstructs the duration the countdown covers.
func (c Countdown) Milliseconds() int64 {
	return int64(c.Days)*msPerDay + int64(c.Hours)*msPerHour + int64(c.Minutes)*msPerMinute
}

// String renders "Ready to send!" or "<d>d <h>h <m>m".
func (c Countdown) String() string {
	if c.Ready {
		return ReadyText
	}
	return fmt.Sprintf("%dd %dh %dm", c.Days, c.Hours, c.Minutes)
}
