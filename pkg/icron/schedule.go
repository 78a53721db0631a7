// Package icron answers "when does this schedule fire" questions for
// standard five-field cron expressions.
package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type TriggerInfo struct {
	Expression string
	Next       time.Time
	// Last is zero when the schedule did not fire in the preceding year.
	Last time.Time

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

func (t TriggerInfo) String() string {
	if t.Last.IsZero() {
		return fmt.Sprintf("%q next at %s (in %s)", t.Expression, t.Next.Format(time.RFC3339), t.TimeUntilNext.Round(time.Second))
	}
	return fmt.Sprintf("%q next at %s (in %s), last at %s", t.Expression,
		t.Next.Format(time.RFC3339), t.TimeUntilNext.Round(time.Second), t.Last.Format(time.RFC3339))
}

// Parse parses a standard cron expression or descriptor such as "@daily".
func Parse(expr string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parse(cronExpr)
	if err != nil {
		return nil, err
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       schedule.Next(refTime),
		Last:       lastBefore(schedule, refTime),
	}
	info.TimeUntilNext = info.Next.Sub(refTime)
	if !info.Last.IsZero() {
		info.TimeSinceLast = refTime.Sub(info.Last)
	}
	return info, nil
}

// lastBefore walks back hour by hour for up to a year looking for the
// latest activation at or before ref.
func lastBefore(schedule cron.Schedule, ref time.Time) time.Time {
	var last time.Time
	for i := 1; i <= 366*24; i++ {
		from := ref.Add(-time.Duration(i) * time.Hour)
		for next := schedule.Next(from); !next.After(ref); next = schedule.Next(next) {
			last = next
		}
		if !last.IsZero() {
			return last
		}
	}
	return last
}
