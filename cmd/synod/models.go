package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// modelsCmd prints the configured roster.
type modelsCmd struct {
	root *options
}

func (c *modelsCmd) Execute(_ []string) error {
	app, err := c.root.bootstrap(context.Background())
	if err != nil {
		return err
	}
	defer app.Close()

	registry, err := app.registry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDISPLAY NAME\tPROVIDER\t")
	for _, d := range registry.ListAll() {
		marker := ""
		if d.IsChairman {
			marker = "chairman"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.DisplayName, d.ProviderTag, marker)
	}
	return w.Flush()
}
