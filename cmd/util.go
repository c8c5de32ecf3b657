package cmd

import (
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
)

var (
	greenCheck = color.GreenString("✓")
	redCross   = color.RedString("✗")

	bold  = color.New(color.Bold).Sprint
	faint = color.New(color.Faint).Sprint
)

// BeQuietError signals that the error was already reported to the user and
// should not be logged again by the root command.
type BeQuietError struct{}

func (BeQuietError) Error() string {
	return "command failed"
}

func logError(err error, correlation, msg string) error {
	evt := log.Error()
	if correlation != "" {
		evt = evt.Str("correlation_id", correlation)
	}
	evt.Msgf("%s %s: %v", redCross, msg, err)
	return BeQuietError{}
}

func logSuccess(format string, args ...any) {
	log.Info().Msgf(greenCheck+" "+format, args...)
}

func applyTableFormat(t table.Writer) {
	t.SetStyle(table.StyleLight)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
