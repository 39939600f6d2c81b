package timeline

import "sort"

// merge concatenates per-track events in track order and stable-sorts them
// by time, so ties keep track order and then in-track order.
func merge(tracks [][]Event) []Event {
	n := 0
	for _, t := range tracks {
		n += len(t)
	}
	out := make([]Event, 0, n)
	for _, t := range tracks {
		out = append(out, t...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
