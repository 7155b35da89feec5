// Package session owns the recording lifecycle.
//
// A Controller validates both credential pools, opens the frame source, runs
// the capture scheduler and an elapsed-seconds ticker, and on stop turns the
// series into a digest, a summary, and an archived session. Status changes and
// observations are published to a livefeed.Hub.
package session
