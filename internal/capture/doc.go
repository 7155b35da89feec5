// Package capture runs the recording loop.
//
// A Scheduler owns one goroutine that, while running, repeatedly waits for
// the frame source to become ready, captures a frame, analyses it through the
// retry policy, and appends the resulting observation to the session series
// before notifying subscribers. The next cycle starts a fixed trailing delay
// after the previous one finished, so slow exchanges stretch the period and
// cycles never overlap. No cycle failure ends the loop; only Stop or
// cancellation of the start context does.
package capture
