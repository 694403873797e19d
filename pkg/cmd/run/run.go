package run

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/azckamp/lanetimer/log"
	"github.com/azckamp/lanetimer/pkg/button"
	"github.com/azckamp/lanetimer/pkg/config"
	"github.com/azckamp/lanetimer/pkg/core"
	"github.com/azckamp/lanetimer/pkg/display"
	"github.com/azckamp/lanetimer/pkg/timing/stopwatch"
	"github.com/azckamp/lanetimer/pkg/transport/ws"
	"github.com/azckamp/lanetimer/pkg/utils"
)

const (
	loopInterval    = 10 * time.Millisecond
	displayInterval = 100 * time.Millisecond
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "connects to the timing server and runs the timing loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimer(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&config.LogLevel,
		"logLevel",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat,
		"logFormat",
		"text",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogFilter,
		"logFilter",
		"",
		"zapfilter rules (example: 'debug:transport info:*')")
	cmd.Flags().StringVar(&config.ReconnectInterval,
		"reconnect-interval",
		"5s",
		"interval between reconnect attempts")
	cmd.Flags().StringVar(&config.DebounceInterval,
		"debounce-interval",
		"200ms",
		"guard interval between accepted button presses")
	return cmd
}

// readPresses turns input lines into button presses until the reader is
// exhausted or ctx is canceled.
func readPresses(ctx context.Context, r io.Reader, btn *button.Button) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		btn.Trigger()
	}
	if err := scanner.Err(); err != nil {
		log.Warn("input read failed", log.ErrorField(err))
	}
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func setupLogger() {
	log.SetFilterRules(config.LogFilter)
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	log.ResetDefault(logger)
}

//nolint:funlen,cyclop // by design
func runTimer(parent context.Context) error {
	setupLogger()

	role := core.Role(config.Role)
	if role != core.RoleLane && role != core.RoleStarter {
		return fmt.Errorf("unknown role %q", config.Role)
	}
	reconnect, err := time.ParseDuration(config.ReconnectInterval)
	if err != nil {
		return fmt.Errorf("invalid reconnect-interval: %w", err)
	}
	debounce, err := time.ParseDuration(config.DebounceInterval)
	if err != nil {
		return fmt.Errorf("invalid debounce-interval: %w", err)
	}

	url := utils.WebsocketURL(
		config.ServerHost, config.ServerPort, config.ServerPath, config.UseTLS)
	log.Info("starting timing client",
		log.String("url", url),
		log.Int("lane", config.Lane),
		log.String("role", string(role)))

	if wait, wErr := time.ParseDuration(config.WaitForServer); wErr == nil && wait > 0 {
		addr, _ := utils.ExtractFromWebsocketURL(url)
		if err = utils.WaitForTCP(addr, wait); err != nil {
			return err
		}
	}

	clock := clockwork.NewRealClock()
	client := ws.NewClient(url, ws.WithReconnectInterval(reconnect))
	console := display.NewConsole(os.Stdout)
	c := core.New(clock,
		core.WithSender(client),
		core.WithListener(console),
		core.WithLane(config.Lane),
		core.WithRole(role))
	btn := button.New(clock, debounce)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go client.Run(ctx)

	// stdin stands in for the hardware button: every line is one press
	go readPresses(ctx, os.Stdin, btn)

	// single control loop: all core access happens here
	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()
	var lastRender time.Time
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case ev := <-client.Events():
			switch ev.Kind {
			case ws.Connected:
				c.OnConnected()
			case ws.Disconnected:
				c.OnDisconnected()
			case ws.Frame:
				c.OnTextFrame(ev.Data)
			}
		case now := <-ticker.C:
			c.Tick()
			if _, ok := btn.Poll(); ok {
				c.HandlePress()
			}
			if c.State() == stopwatch.Running && now.Sub(lastRender) >= displayInterval {
				console.RenderElapsed(c.Elapsed())
				lastRender = now
			}
		}
	}
}
