package internal

import (
	"os"

	"github.com/charmbracelet/log"
)

// Log writes diagnostics to stderr so stdout stays reserved for the child.
var Log = log.NewWithOptions(os.Stderr, log.Options{
	Prefix:          "awsx",
	ReportTimestamp: false,
})

// SetVerbose switches debug logging on.
func SetVerbose(v bool) {
	if v {
		Log.SetLevel(log.DebugLevel)
	} else {
		Log.SetLevel(log.WarnLevel)
	}
}
