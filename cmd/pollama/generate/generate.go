// Package generatecmder provides the generate command.
package generatecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZBcheng/pure-ollama/pkg/cliui"
	"github.com/ZBcheng/pure-ollama/pkg/config"
	"github.com/ZBcheng/pure-ollama/pkg/logger"
	"github.com/ZBcheng/pure-ollama/pkg/ollama"
)

type generateCommander struct {
	model     string
	baseURL   string
	timeout   string
	keepAlive string

	system   string
	format   string
	noStream bool
	raw      bool
	stats    bool
	debug    bool

	prompt string
	cfg    *config.Config
	out    io.Writer
	logger *slog.Logger
}

var registryFlags = []string{
	config.FlagModel,
	config.FlagBaseURL,
	config.FlagTimeout,
	config.FlagKeepAlive,
}

const generateLongDesc string = `Generate a completion for a prompt.

The prompt is taken from the arguments, or read from stdin when none are
given. Tokens are printed as they arrive; with --no-stream the whole answer
is requested at once and rendered as markdown on a terminal.

Examples:
  pollama generate "why is the sky blue?"
  pollama generate -m mistral --format json "list three colors as JSON"
  cat notes.md | pollama generate --system "summarize this"`

const generateShortDesc string = "Generate a completion for a prompt"

func NewGenerateCmd() *cobra.Command {
	cmder := &generateCommander{}

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: generateShortDesc,
		Long:  generateLongDesc,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(cmd, registryFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg

			cmder.prompt, err = readPrompt(args, cmd.InOrStdin())
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.out = cmd.OutOrStdout()
			cmder.logger = logger.New(
				logger.WithDebug(cmder.debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
			)
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagKeepAlive, &cmder.keepAlive)
	cmd.Flags().StringVar(&cmder.system, "system", "", "System message overriding the Modelfile")
	cmd.Flags().StringVar(&cmder.format, "format", "", `Response format ("json")`)
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Request a single response instead of a stream")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Send the prompt without templating")
	cmd.Flags().BoolVar(&cmder.stats, "stats", false, "Print token counts and throughput when done")

	return cmd
}

func (c *generateCommander) run(ctx context.Context) error {
	client, err := c.cfg.Client.NewClient(c.logger)
	if err != nil {
		return err
	}

	req := &ollama.GenerateRequest{
		Model:     c.cfg.Client.Model,
		Prompt:    c.prompt,
		System:    c.system,
		Format:    ollama.Format(c.format),
		Options:   c.cfg.Options.ToOptions(),
		KeepAlive: c.cfg.Client.KeepAlive,
	}
	if c.noStream {
		req.Stream = ollama.Ptr(false)
	}
	if c.raw {
		req.Raw = ollama.Ptr(true)
	}

	resp, err := client.Generate(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Close()

	printer := cliui.NewPrinter(c.out)

	var final ollama.GenerateResponse
	if c.noStream {
		final, err = resp.Single()
		if err != nil {
			return err
		}
		printer.Markdown(final.Response)
	} else {
		final, err = ollama.Fold(cliui.Echo(printer, resp.Stream(), func(item ollama.GenerateResponse) string {
			return item.Response
		}))
		fmt.Fprintln(printer)
		if err != nil {
			return err
		}
	}

	if c.stats {
		printer.Stats(final.Metrics)
	}
	return nil
}

func readPrompt(args []string, in io.Reader) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && in != nil {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("reading prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return "", errors.New("a prompt is required")
	}
	return prompt, nil
}
