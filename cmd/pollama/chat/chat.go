// Package chatcmder provides the chat command for an interactive
// conversation with a model.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZBcheng/pure-ollama/pkg/cliui"
	"github.com/ZBcheng/pure-ollama/pkg/config"
	"github.com/ZBcheng/pure-ollama/pkg/dotdir"
	"github.com/ZBcheng/pure-ollama/pkg/logger"
	"github.com/ZBcheng/pure-ollama/pkg/ollama"
)

type chatCommander struct {
	model     string
	baseURL   string
	timeout   string
	keepAlive string

	system    string
	resume    bool
	stats     bool
	debug     bool
	modelSet  bool
	configDir string

	cfg      *config.Config
	in       io.Reader
	out      io.Writer
	printer  *cliui.Printer
	client   *ollama.Client
	sessions *dotdir.Manager
	logger   *slog.Logger
}

var registryFlags = []string{
	config.FlagModel,
	config.FlagBaseURL,
	config.FlagTimeout,
	config.FlagKeepAlive,
}

const (
	exitCommand  = "/exit"
	byeCommand   = "/bye"
	clearCommand = "/clear"
)

const chatLongDesc string = `Chat with a model interactively.

Each message is sent with the whole conversation so far and the reply is
streamed back as it is generated. The conversation is saved to the
.pollama/ directory after every turn and can be picked up again with --resume.

Commands:
  /clear   Start over, dropping the saved conversation
  /exit    Quit (also /bye or Ctrl+D)

Examples:
  pollama chat
  pollama chat -m mistral --system "answer in French"
  pollama chat --resume`

const chatShortDesc string = "Chat with a model interactively"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, registryFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			cmder.modelSet = cmd.Flags().Changed("model")
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
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
	cmd.Flags().StringVar(&cmder.system, "system", "", "System message for a new conversation")
	cmd.Flags().BoolVarP(&cmder.resume, "resume", "r", false, "Resume the saved conversation")
	cmd.Flags().BoolVar(&cmder.stats, "stats", false, "Print token counts and throughput after each reply")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	var err error
	c.client, err = c.cfg.Client.NewClient(c.logger)
	if err != nil {
		return err
	}
	c.printer = cliui.NewPrinter(c.out)
	c.sessions = dotdir.NewManager()

	model := c.cfg.Client.Model
	messages, err := c.startConversation(&model)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.ValueStyle.Render(model))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for ctx.Err() == nil {
		fmt.Fprint(c.out, c.printer.Prompt(model))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case exitCommand, byeCommand:
			fmt.Fprintln(c.out)
			return nil
		case clearCommand:
			messages = c.systemMessages()
			if err := c.sessions.ClearSession(c.configDir); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "  %s Conversation cleared\n\n", cliui.SuccessMark)
			continue
		}

		messages = append(messages, ollama.Message{Role: ollama.RoleUser, Content: input})

		reply, err := c.send(ctx, model, messages)
		if err != nil {
			c.printer.Errorf("  %s %v", cliui.FailMark, err)
			// Drop the failed turn so it can be retried.
			messages = messages[:len(messages)-1]
			continue
		}

		messages = append(messages, ollama.Message{Role: ollama.RoleAssistant, Content: reply.Content()})
		if c.stats {
			c.printer.Stats(reply.Metrics)
		}
		fmt.Fprintln(c.out)

		if err := c.save(model, messages); err != nil {
			c.logger.Warn("could not save chat session", "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// startConversation returns the opening history: the saved session with
// --resume, otherwise just the system message.
func (c *chatCommander) startConversation(model *string) ([]ollama.Message, error) {
	if !c.resume {
		fmt.Fprintf(c.out, "\n  %s New conversation\n", cliui.DimStyle.Render("●"))
		return c.systemMessages(), nil
	}

	session, err := c.sessions.LoadSession(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading chat session: %w", err)
	}
	if session == nil {
		fmt.Fprintf(c.out, "\n  %s No saved conversation, starting a new one\n", cliui.DimStyle.Render("●"))
		return c.systemMessages(), nil
	}

	if session.Model != "" && !c.modelSet {
		*model = session.Model
	}

	messages := make([]ollama.Message, 0, len(session.Messages))
	for _, m := range session.Messages {
		role, err := ollama.ParseRole(m.Role)
		if err != nil {
			c.logger.Warn("skipping saved message", "role", m.Role, "error", err)
			continue
		}
		messages = append(messages, ollama.Message{Role: role, Content: m.Content})
	}

	fmt.Fprintf(c.out, "\n  %s Resuming conversation %s\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(messages))),
	)
	return messages, nil
}

func (c *chatCommander) systemMessages() []ollama.Message {
	if c.system == "" {
		return nil
	}
	return []ollama.Message{{Role: ollama.RoleSystem, Content: c.system}}
}

// send streams the reply to the printer and returns it aggregated.
func (c *chatCommander) send(ctx context.Context, model string, messages []ollama.Message) (ollama.ChatResponse, error) {
	resp, err := c.client.Chat(ctx, &ollama.ChatRequest{
		Model:     model,
		Messages:  messages,
		Options:   c.cfg.Options.ToOptions(),
		KeepAlive: c.cfg.Client.KeepAlive,
	})
	if err != nil {
		return ollama.ChatResponse{}, err
	}
	defer resp.Close()

	reply, err := ollama.Fold(cliui.Echo(c.printer, resp.Stream(), ollama.ChatResponse.Content))
	fmt.Fprintln(c.out)
	return reply, err
}

func (c *chatCommander) save(model string, messages []ollama.Message) error {
	session := &dotdir.ChatSession{
		Model:     model,
		UpdatedAt: time.Now().UTC(),
		Messages:  make([]dotdir.SessionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		session.Messages = append(session.Messages, dotdir.SessionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return c.sessions.SaveSession(session, c.configDir)
}
