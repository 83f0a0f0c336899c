package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// conversationsCmd groups the conversation management subcommands.
type conversationsCmd struct {
	List   *conversationsListCmd   `command:"list" description:"list stored conversations, most recent first"`
	Delete *conversationsDeleteCmd `command:"delete" description:"delete a conversation and its turns"`
}

type conversationsListCmd struct {
	root *options
}

func (c *conversationsListCmd) Execute(_ []string) error {
	ctx := context.Background()
	app, err := c.root.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	st, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	conversations, err := st.List(ctx)
	if err != nil {
		return err
	}
	if len(conversations) == 0 {
		fmt.Println("no conversations")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMESSAGES\tTURNS\tUPDATED")
	for _, conv := range conversations {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			conv.ID, len(conv.Messages), len(conv.Turns), conv.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

type conversationsDeleteCmd struct {
	Args struct {
		ID string `positional-arg-name:"id" required:"yes"`
	} `positional-args:"yes"`

	root *options
}

func (c *conversationsDeleteCmd) Execute(_ []string) error {
	ctx := context.Background()
	app, err := c.root.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	st, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	if err := st.Delete(ctx, c.Args.ID); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", c.Args.ID)
	return nil
}
