// Package historycmder provides the history command for browsing exchanges
// recorded by the proxy.
package historycmder

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ZBcheng/pure-ollama/cmd/pollama/storagedriver"
	"github.com/ZBcheng/pure-ollama/pkg/cliui"
	"github.com/ZBcheng/pure-ollama/pkg/config"
	"github.com/ZBcheng/pure-ollama/pkg/storage"
	"github.com/ZBcheng/pure-ollama/pkg/utils"
)

const (
	shortIDLen   = 8
	previewWidth = 48
	timeLayout   = "2006-01-02 15:04:05"
)

type historyCommander struct {
	sqlitePath  string
	postgresDSN string

	model    string
	endpoint string
	limit    int

	cfg *config.Config
	out io.Writer
}

var registryFlags = []string{
	config.FlagSQLite,
	config.FlagPostgres,
}

const historyLongDesc string = `List exchanges recorded by "pollama serve", newest first.

The history is read from the PostgreSQL database when one is configured,
otherwise from the SQLite database given by --sqlite or found in the usual
places (./pollama.db, ./.pollama/pollama.db, ~/.pollama/pollama.db).

Examples:
  pollama history
  pollama history --model llama3.2 --endpoint chat -n 5
  pollama history show 1f0c2a9e`

const historyShortDesc string = "Browse recorded exchanges"

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.runList(cmd.Context())
		},
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Only show exchanges for this model")
	cmd.Flags().StringVarP(&cmder.endpoint, "endpoint", "e", "", "Only show exchanges for this endpoint (generate, chat, create)")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Maximum number of exchanges to show (0 for all)")

	cmd.AddCommand(newShowCmd(cmder))

	return cmd
}

func (c *historyCommander) resolve(cmd *cobra.Command) error {
	cfg, err := config.Resolve(cmd, registryFlags...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg
	return nil
}

func (c *historyCommander) runList(ctx context.Context) error {
	endpoint, err := parseEndpoint(c.endpoint)
	if err != nil {
		return err
	}

	driver, err := storagedriver.OpenExisting(ctx, c.cfg.Storage)
	if err != nil {
		return err
	}
	defer driver.Close()

	exchanges, err := driver.List(ctx, storage.ListOptions{
		Model:    c.model,
		Endpoint: endpoint,
		Limit:    c.limit,
	})
	if err != nil {
		return fmt.Errorf("listing exchanges: %w", err)
	}

	if len(exchanges) == 0 {
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("No recorded exchanges."))
		return nil
	}

	fmt.Fprintf(c.out, "%-8s  %-19s  %-8s  %-16s  %-6s  %6s  %s\n",
		"ID", "CREATED", "ENDPOINT", "MODEL", "STATUS", "TOKENS", "PROMPT")
	for _, ex := range exchanges {
		fmt.Fprintf(c.out, "%-8s  %-19s  %-8s  %-16s  %-6s  %6d  %s\n",
			shortID(ex.ID),
			ex.CreatedAt.Local().Format(timeLayout),
			ex.Endpoint,
			utils.Truncate(ex.Model, 16),
			statusLabel(ex),
			ex.CompletionTokens,
			utils.Truncate(utils.OneLine(Preview(ex)), previewWidth),
		)
	}
	return nil
}

func parseEndpoint(s string) (storage.Endpoint, error) {
	switch e := storage.Endpoint(s); e {
	case "", storage.EndpointGenerate, storage.EndpointChat, storage.EndpointCreate:
		return e, nil
	default:
		return "", fmt.Errorf("unknown endpoint %q: expected generate, chat or create", s)
	}
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func statusLabel(ex *storage.Exchange) string {
	if ex.Error != "" && ex.Status == http.StatusOK {
		return "bad"
	}
	return fmt.Sprint(ex.Status)
}
