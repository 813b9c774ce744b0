package main

import (
	"github.com/schollz/progressbar/v3"
)

// barSink drives a terminal progress bar from pipeline notifications.
type barSink struct {
	bar *progressbar.ProgressBar
}

func newBarSink() *barSink {
	return &barSink{
		bar: progressbar.NewOptions(100,
			progressbar.OptionSetDescription("Processing"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// Notify implements service.ProgressSink. Best effort; bar errors are
// ignored so display glitches never disturb extraction.
func (s *barSink) Notify(message string, percent int) {
	s.bar.Describe(message)
	_ = s.bar.Set(percent)
}
