package activity

import "time"

// Stats aggregates play and idle time over a set of intervals.
type Stats struct {
	Play      time.Duration
	Total     time.Duration
	Intervals int
}

// Idle is Total minus Play.
func (s Stats) Idle() time.Duration {
	return s.Total - s.Play
}

func summarize(history []PlayInterval) Stats {
	if len(history) == 0 {
		return Stats{}
	}
	var play time.Duration
	minStart := history[0].Start
	maxStop := history[0].Stop
	for _, p := range history {
		play += p.Duration()
		if p.Start.Before(minStart) {
			minStart = p.Start
		}
		if p.Stop.After(maxStop) {
			maxStop = p.Stop
		}
	}
	return Stats{
		Play:      play,
		Total:     maxStop.Sub(minStart),
		Intervals: len(history),
	}
}
