// Package createcmder provides the create command for building a model from
// a Modelfile.
package createcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ZBcheng/pure-ollama/pkg/cliui"
	"github.com/ZBcheng/pure-ollama/pkg/config"
	"github.com/ZBcheng/pure-ollama/pkg/logger"
	"github.com/ZBcheng/pure-ollama/pkg/ollama"
)

// watchDebounce coalesces the burst of events an editor emits on save.
const watchDebounce = 250 * time.Millisecond

type createCommander struct {
	baseURL string
	timeout string

	name      string
	file      string
	watch     bool
	debug     bool
	showSteps bool

	cfg    *config.Config
	client *ollama.Client
	out    io.Writer
	logger *slog.Logger
}

var registryFlags = []string{
	config.FlagBaseURL,
	config.FlagTimeout,
}

const createLongDesc string = `Create a model from a Modelfile.

The Modelfile is read locally and sent to the server, which reports its
progress until the model is ready. With --watch the model is re-created
every time the Modelfile is saved, until interrupted.

Examples:
  pollama create mario -f ./Modelfile
  pollama create mario -f ./Modelfile --watch`

const createShortDesc string = "Create a model from a Modelfile"

func NewCreateCmd() *cobra.Command {
	cmder := &createCommander{}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: createShortDesc,
		Long:  createLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(cmd, registryFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			cmder.name = args[0]
			return nil
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

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "Modelfile", "Path to the Modelfile")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Re-create the model whenever the Modelfile changes")
	cmd.Flags().BoolVar(&cmder.showSteps, "verbose", false, "Print every progress status reported by the server")

	return cmd
}

func (c *createCommander) run(ctx context.Context) error {
	var err error
	c.client, err = c.cfg.Client.NewClient(c.logger)
	if err != nil {
		return err
	}

	if !c.watch {
		return c.create(ctx)
	}
	return c.watchAndCreate(ctx)
}

func (c *createCommander) create(ctx context.Context) error {
	modelfile, err := os.ReadFile(c.file)
	if err != nil {
		return fmt.Errorf("reading modelfile: %w", err)
	}

	var result ollama.CreateModelResponse
	err = cliui.Step(c.out, fmt.Sprintf("Creating %s from %s", c.name, c.file), func() error {
		resp, err := c.client.CreateModel(ctx, &ollama.CreateModelRequest{
			Name:      c.name,
			Modelfile: string(modelfile),
		})
		if err != nil {
			return err
		}
		defer resp.Close()

		result, err = resp.Aggregate()
		if err != nil {
			return err
		}
		if !result.Terminal() {
			return fmt.Errorf("model creation ended with %q", result.LastStatus())
		}
		return nil
	})
	if err != nil {
		return err
	}

	if c.showSteps {
		for _, status := range strings.Split(result.Status, "\n") {
			fmt.Fprintf(c.out, "    %s\n", cliui.DimStyle.Render(status))
		}
	}
	return nil
}

// watchAndCreate creates the model once, then again on every change to the
// Modelfile. The parent directory is watched because editors often replace
// the file instead of writing it in place.
func (c *createCommander) watchAndCreate(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating modelfile watcher: %w", err)
	}
	defer watcher.Close()

	path, err := filepath.Abs(c.file)
	if err != nil {
		return fmt.Errorf("resolving modelfile path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching modelfile dir: %w", err)
	}

	c.createAndReport(ctx)
	fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("Watching "+c.file+" for changes. Ctrl+C to stop."))

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			c.logger.Debug("modelfile changed", "path", path, "op", event.Op.String())
			debounce.Reset(watchDebounce)
		case <-debounce.C:
			c.createAndReport(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("modelfile watcher error: %w", err)
		}
	}
}

// createAndReport keeps a failed create from ending the watch.
func (c *createCommander) createAndReport(ctx context.Context) {
	err := c.create(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	fmt.Fprintf(c.out, "    %s\n", cliui.DimStyle.Render(err.Error()))
}
