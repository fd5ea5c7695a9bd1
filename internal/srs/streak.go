package srs

import "time"

const dayKeyLayout = "2006-01-02"

// StudyStreak counts the consecutive calendar days, in now's location, on
// which at least one review was logged. The streak ends today, or yesterday
// when nothing has been reviewed yet today. Reviews after now are ignored.
func StudyStreak(logs []ReviewLog, now time.Time) int {
	loc := now.Location()
	days := make(map[string]struct{}, len(logs))
	for _, l := range logs {
		if l.ReviewedAt.After(now) {
			continue
		}
		days[l.ReviewedAt.In(loc).Format(dayKeyLayout)] = struct{}{}
	}

	y, m, d := now.Date()
	day := time.Date(y, m, d, 12, 0, 0, 0, loc)
	if _, ok := days[day.Format(dayKeyLayout)]; !ok {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		if _, ok := days[day.Format(dayKeyLayout)]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}
