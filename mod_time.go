package sparkle

import (
	"time"
)

type Time struct {
	Time  time.Time
	Dt    time.Duration
	fixed time.Duration
}

// DtSeconds is the last frame delta in seconds.
func (t *Time) DtSeconds() float32 {
	return float32(t.Dt.Seconds())
}

// TimeModule advances the Time resource in Prelude. A non-zero FixedDt
// steps the clock by that amount every frame instead of reading the wall
// clock.
type TimeModule struct {
	FixedDt time.Duration
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{
		Time:  time.Now(),
		Dt:    0,
		fixed: mod.FixedDt,
	})
	cmd.UseSystem(System(timeSystem).InStage(Prelude))
}

func timeSystem(timeResource *Time) {
	if timeResource.fixed > 0 {
		timeResource.Dt = timeResource.fixed
		timeResource.Time = timeResource.Time.Add(timeResource.fixed)
		return
	}
	now := time.Now()
	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Time = now
}
