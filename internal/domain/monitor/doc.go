// Package monitor classifies observed events into security alerts.
//
// Rules are independent and all run for every event, so one submission can
// raise several alerts. There is no deduplication: a sustained click storm
// raises one alert per qualifying click.
//
// The click rule keeps its own time-windowed index of click timestamps,
// trimmed on every click, so evaluation cost is bounded by the window and
// not by the size of the event log.
package monitor
