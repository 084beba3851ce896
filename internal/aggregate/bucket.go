package aggregate

import "time"

// TruncateHour returns the start of t's UTC hour.
func TruncateHour(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), 0, 0, 0, time.UTC)
}

// TruncateDay returns the start of t's UTC day.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Day is one UTC day of consecutive hourly values. FirstHour is the hour of
// day of Values[0]; the first and last day of a series may be partial.
type Day struct {
	Date      time.Time `json:"date"`
	FirstHour int       `json:"firstHour"`
	Values    []int64   `json:"values"`
}

// Latest returns the last hourly value of the day, or 0.
func (d Day) Latest() int64 {
	if len(d.Values) == 0 {
		return 0
	}
	return d.Values[len(d.Values)-1]
}

// DaySeries lays hours out over every hour bucket from start to end
// inclusive, grouped by UTC day. Buckets with no data are explicit zeros.
func DaySeries(hours HourStat, start, end time.Time) []Day {
	first, last := TruncateHour(start), TruncateHour(end)
	if last.Before(first) {
		return nil
	}

	var days []Day
	for h := first; !h.After(last); h = h.Add(time.Hour) {
		date := TruncateDay(h)
		if len(days) == 0 || !days[len(days)-1].Date.Equal(date) {
			days = append(days, Day{Date: date, FirstHour: h.Hour()})
		}
		d := &days[len(days)-1]
		d.Values = append(d.Values, hours[h])
	}
	return days
}

// TotalHours returns the number of hourly values across days.
func TotalHours(days []Day) int {
	n := 0
	for _, d := range days {
		n += len(d.Values)
	}
	return n
}
