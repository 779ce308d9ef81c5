package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"browser-pilot/internal/di"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/config"
	"browser-pilot/internal/infrastructure/userinteraction"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type flags struct {
	goal       string
	url        string
	configFile string
	headless   bool
	serve      bool
	addr       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:          "agent",
		Short:        "Drive a browser toward a natural-language goal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.goal == "" && len(args) > 0 {
				f.goal = strings.Join(args, " ")
			}
			return run(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.goal, "goal", "g", "", "run a single goal and exit")
	cmd.Flags().StringVar(&f.url, "url", "", "page to open before the first task")
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "config file (default ./browser-pilot.yaml)")
	cmd.Flags().BoolVar(&f.headless, "headless", false, "run the browser without a window")
	cmd.Flags().BoolVar(&f.serve, "serve", false, "expose task control and events over HTTP")
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address for --serve")
	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	overrides := map[string]any{}
	if f.url != "" {
		overrides["browser.start_url"] = f.url
	}
	if cmd.Flags().Changed("headless") {
		overrides["browser.headless"] = f.headless
	}
	if f.addr != "" {
		overrides["server.addr"] = f.addr
	}

	cfg, err := config.Load(config.LoadOptions{ConfigFile: f.configFile, Overrides: overrides})
	if err != nil {
		return err
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	console := userinteraction.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout(), cfg.Task.MaxTurns)
	unsubscribe := container.Events.Subscribe(console.Render)
	defer unsubscribe()

	go handleInterrupts(ctx, container, stop)

	switch {
	case f.serve:
		return serve(ctx, container, f.goal)
	case f.goal != "":
		return container.Tasks.StartTask(ctx, f.goal)
	default:
		return repl(ctx, container, console)
	}
}

// handleInterrupts cancels the running task on SIGINT/SIGTERM. A signal with
// no task in flight shuts the program down.
func handleInterrupts(ctx context.Context, c *di.Container, stop context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			if err := c.Tasks.CancelTask(); err != nil {
				c.Logger.Info("Shutting down")
				stop()
				return
			}
		}
	}
}

func repl(ctx context.Context, c *di.Container, console *userinteraction.Console) error {
	for {
		goal, err := console.ReadGoal(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		if goal == "" {
			continue
		}
		if err := c.Tasks.StartTask(ctx, goal); err != nil && !entity.IsKind(err, entity.ErrorKindUserCancelled) {
			c.Logger.Warn("Task failed", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func serve(ctx context.Context, c *di.Container, goal string) error {
	srv := &http.Server{
		Addr:              c.Config.Server.Addr,
		Handler:           c.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if goal != "" {
		_, done, err := c.Tasks.StartTaskAsync(ctx, goal)
		if err != nil {
			return err
		}
		go func() {
			if err := <-done; err != nil {
				c.Logger.Warn("Task failed", "error", err)
			}
		}()
	}
	return g.Wait()
}
