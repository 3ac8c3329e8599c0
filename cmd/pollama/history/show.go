package historycmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZBcheng/pure-ollama/cmd/pollama/storagedriver"
	"github.com/ZBcheng/pure-ollama/pkg/cliui"
	"github.com/ZBcheng/pure-ollama/pkg/storage"
)

const showLongDesc string = `Show one recorded exchange.

The exchange is looked up by its ID or by an unambiguous ID prefix as shown
by "pollama history". The answer is rendered as markdown on a terminal.

Examples:
  pollama history show 1f0c2a9e
  pollama history show 1f0c2a9e --json`

const showShortDesc string = "Show one recorded exchange"

func newShowCmd(parent *historyCommander) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return parent.resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			parent.out = cmd.OutOrStdout()
			return parent.runShow(cmd.Context(), args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the exchange as JSON")

	return cmd
}

func (c *historyCommander) runShow(ctx context.Context, id string, asJSON bool) error {
	driver, err := storagedriver.OpenExisting(ctx, c.cfg.Storage)
	if err != nil {
		return err
	}
	defer driver.Close()

	ex, err := lookup(ctx, driver, id)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(ex, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding exchange: %w", err)
		}
		fmt.Fprintln(c.out, string(data))
		return nil
	}

	field := func(key, value string) {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-9s", key+":")), cliui.ValueStyle.Render(value))
	}

	fmt.Fprintln(c.out)
	field("ID", ex.ID)
	field("Endpoint", string(ex.Endpoint))
	field("Model", ex.Model)
	field("Status", fmt.Sprint(ex.Status))
	field("Streamed", fmt.Sprint(ex.Streamed))
	field("Created", ex.CreatedAt.Local().Format(timeLayout))
	if ex.CompletionTokens > 0 || ex.PromptTokens > 0 {
		field("Tokens", fmt.Sprintf("%d prompt, %d completion", ex.PromptTokens, ex.CompletionTokens))
	}
	if ex.DurationNs > 0 {
		field("Duration", cliui.FormatDuration(ex.Duration()))
	}

	fmt.Fprintf(c.out, "\n  %s\n%s\n", cliui.KeyStyle.Render("Request:"), indentJSON(ex.Request))

	if ex.Error != "" {
		fmt.Fprintf(c.out, "\n  %s\n%s\n", cliui.KeyStyle.Render("Error:"), ex.Error)
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s\n", cliui.KeyStyle.Render("Response:"))
	if answer := Answer(ex); answer != "" {
		cliui.NewPrinter(c.out).Markdown(answer)
	} else {
		fmt.Fprintln(c.out, indentJSON(ex.Response))
	}
	return nil
}

// lookup resolves a full ID, or a prefix that matches exactly one exchange.
func lookup(ctx context.Context, driver storage.Driver, id string) (*storage.Exchange, error) {
	ex, err := driver.Get(ctx, id)
	if err == nil {
		return ex, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("getting exchange: %w", err)
	}

	all, err := driver.List(ctx, storage.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing exchanges: %w", err)
	}

	var matches []*storage.Exchange
	for _, candidate := range all {
		if strings.HasPrefix(candidate.ID, id) {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return nil, storage.NotFoundError{ID: id}
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("id prefix %q matches %d exchanges", id, len(matches))
	}
}

func indentJSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
