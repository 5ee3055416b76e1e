package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// NextRun returns the first local wall-clock time strictly after now at which
// s fires. The zero time is returned if the schedule cannot be expressed as a
// cron spec (it always can once Parse accepted it).
func NextRun(s Schedule, now time.Time) time.Time {
	spec, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", s.Minute, s.Hour))
	if err != nil {
		return time.Time{}
	}
	return spec.Next(now)
}
