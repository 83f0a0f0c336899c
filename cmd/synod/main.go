// Synod council CLI: runs multi-model deliberation turns as NDJSON event
// streams and manages the conversations they produce.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

// options is the root command. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type options struct {
	ConfigDir string `long:"config-dir" description:"path to the configuration directory (defaults to $CONFIG_DIR or ./config)"`

	Ask           *askCmd           `command:"ask" description:"run one council turn, streaming NDJSON events to stdout"`
	Models        *modelsCmd        `command:"models" description:"list the configured model roster"`
	Conversations *conversationsCmd `command:"conversations" description:"manage stored conversations"`
	Version       *versionCmd       `command:"version" description:"print the build version"`
}

func main() {
	opts := &options{}
	opts.Ask = &askCmd{root: opts}
	opts.Models = &modelsCmd{root: opts}
	opts.Conversations = &conversationsCmd{
		List:   &conversationsListCmd{root: opts},
		Delete: &conversationsDeleteCmd{root: opts},
	}
	opts.Version = &versionCmd{}

	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		// go-flags prints its own parse errors; command errors are ours.
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
