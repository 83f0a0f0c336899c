package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/synod-ai/synod/pkg/council"
	"github.com/synod-ai/synod/pkg/events"
)

// askCmd runs one council turn. Events stream to stdout as NDJSON; the
// conversation id goes to stderr so output stays machine-readable.
type askCmd struct {
	Conversation string   `short:"c" long:"conversation" description:"conversation id to continue (new one minted when omitted)"`
	Models       []string `short:"m" long:"models" description:"councilor model ids, comma-separated or repeated"`
	Quiet        bool     `short:"q" long:"quiet" description:"suppress the event stream and print only the final text"`

	Args struct {
		Message []string `positional-arg-name:"message" required:"1"`
	} `positional-args:"yes"`

	root *options
}

func (c *askCmd) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := c.root.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	registry, err := app.registry()
	if err != nil {
		return err
	}
	st, err := app.openStore(ctx)
	if err != nil {
		return err
	}

	orch := council.New(registry, st, app.cfg.Council)

	sess, err := orch.Run(ctx, council.Request{
		ConversationID: c.Conversation,
		Message:        strings.Join(c.Args.Message, " "),
		SelectedModels: splitModelIDs(c.Models),
	})
	if err != nil {
		return err
	}

	if c.Quiet {
		for range sess.Events() {
		}
	} else {
		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()
		if err := events.NewEncoder(out).EncodeStream(sess.Events()); err != nil {
			slog.Error("Event stream write failed", "error", err)
		}
	}

	turn, err := sess.Wait()
	fmt.Fprintf(os.Stderr, "conversation: %s\n", sess.ConversationID())
	if err != nil {
		return fmt.Errorf("council turn failed: %w", err)
	}
	if c.Quiet {
		fmt.Println(turn.FinalText)
	}
	return nil
}

// splitModelIDs accepts both repeated flags and comma-separated lists.
func splitModelIDs(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, id := range strings.Split(entry, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
