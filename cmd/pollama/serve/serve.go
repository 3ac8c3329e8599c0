// Package servecmder provides the serve command, which runs the recording
// proxy in front of an Ollama server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZBcheng/pure-ollama/cmd/pollama/storagedriver"
	"github.com/ZBcheng/pure-ollama/pkg/config"
	"github.com/ZBcheng/pure-ollama/pkg/eventstream"
	"github.com/ZBcheng/pure-ollama/pkg/eventstream/kafka"
	"github.com/ZBcheng/pure-ollama/pkg/eventstream/nop"
	"github.com/ZBcheng/pure-ollama/pkg/logger"
	"github.com/ZBcheng/pure-ollama/proxy"
)

type serveCommander struct {
	listen       string
	upstream     string
	sqlitePath   string
	postgresDSN  string
	kafkaBrokers string
	kafkaTopic   string

	workers   uint
	queueSize uint
	jsonLogs  bool
	logFile   string
	debug     bool

	cfg    *config.Config
	logger *slog.Logger
}

var registryFlags = []string{
	config.FlagListen,
	config.FlagUpstream,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const serveLongDesc string = `Run the recording proxy.

The proxy forwards every request to the upstream Ollama server unchanged.
Generate, chat and create exchanges are also decoded, aggregated and stored
as history, and announced on Kafka when brokers are configured.

Point clients at the proxy instead of the server:
  pollama serve -u http://localhost:11434 -l :11435 -s pollama.db
  pollama generate --base-url http://localhost:11435 "hello"
  pollama history`

const serveShortDesc string = "Run the recording proxy"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd, registryFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.logger = logger.New(
				logger.WithDebug(cmder.debug),
				logger.WithJSON(cmder.jsonLogs),
				logger.WithWriter(cmd.ErrOrStderr()),
			)
			if cmder.logFile != "" {
				f, err := os.OpenFile(cmder.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()

				cmder.logger = logger.Multi(cmder.logger, logger.New(
					logger.WithDebug(cmder.debug),
					logger.WithJSON(true),
					logger.WithWriter(f),
				))
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().UintVar(&cmder.workers, "workers", 0, "Number of storage workers (default: 3)")
	cmd.Flags().UintVar(&cmder.queueSize, "queue-size", 0, "Pending exchanges before new ones are dropped (default: 256)")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	driver, err := storagedriver.Open(ctx, c.cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer func() {
		if n, ok := publisher.(*nop.Publisher); ok {
			c.logger.Debug("no kafka brokers configured, exchange events dropped", "count", n.Dropped())
		}
		_ = publisher.Close()
	}()

	p, err := proxy.New(proxy.Config{
		ListenAddr:  c.cfg.Proxy.Listen,
		UpstreamURL: c.cfg.Proxy.Upstream,
		Publisher:   publisher,
		NumWorkers:  c.workers,
		QueueSize:   c.queueSize,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	listener, err := net.Listen("tcp", c.cfg.Proxy.Listen)
	if err != nil {
		_ = p.Close()
		return fmt.Errorf("listening on %s: %w", c.cfg.Proxy.Listen, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.RunWithListener(listener)
	}()

	select {
	case err := <-errCh:
		_ = p.Close()
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down proxy server")
		if err := p.Close(); err != nil {
			return fmt.Errorf("shutting down proxy: %w", err)
		}
		return nil
	}
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	brokers := c.cfg.EventStream.BrokerList()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   c.cfg.EventStream.Topic,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing exchange events",
		"brokers", brokers,
		"topic", c.cfg.EventStream.Topic,
	)
	return publisher, nil
}
