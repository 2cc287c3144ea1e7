package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/airbusgeo/godal"
	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/firerisk/internal/api"
	"github.com/forest-guardian/firerisk/internal/artifact"
	"github.com/forest-guardian/firerisk/internal/notification"
	"github.com/forest-guardian/firerisk/internal/observability"
	"github.com/forest-guardian/firerisk/internal/pipeline"
	"github.com/forest-guardian/firerisk/internal/properties"
	"github.com/forest-guardian/firerisk/internal/raster"
	"github.com/forest-guardian/firerisk/internal/scheduler"
	"github.com/forest-guardian/firerisk/internal/ui"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
)

func printBanner() {
	figure1 := figure.NewFigure("Fire Risk", "isometric1", true)
	bannercolor.Red(figure1.String())
	fmt.Println()
}

func loadEnv() {
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func main() {
	serve := flag.Bool("serve", false, "run the HTTP API and the scheduler instead of the interactive menu")
	port := flag.Int("port", 0, "HTTP port, overrides HTTP_ADDR")
	flag.Parse()

	loadEnv()
	props, err := properties.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port > 0 {
		props.HTTPAddr = fmt.Sprintf(":%d", *port)
	}

	logger := observability.NewLogger(os.Stderr, props.LogLevel, props.LogFormat)
	godal.RegisterAll()

	store := artifact.NewFileStore(props.DataRoot)
	discord := notification.NewDiscord(props.DiscordErrorNotificationUrl, props.DiscordSuccessNotificationUrl)

	opts := pipeline.Options{
		Properties: props,
		Store:      store,
		Opener:     raster.GodalOpener{},
		Clock:      clockwork.NewRealClock(),
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
	}

	if *serve {
		os.Exit(runServer(props, pipeline.NewService(opts), discord, logger))
	}

	opts.Progress = os.Stdout
	runCLI(pipeline.NewService(opts), discord)
}

func runServer(props *properties.Properties, service *pipeline.Service, discord *notification.Discord, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(props.HTTPAddr, service, logger)
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var sched *scheduler.Scheduler
	if props.ScheduleCron != "" {
		var err error
		sched, err = scheduler.Start(props.ScheduleCron, props.ScheduleRegions, service, discord, logger)
		if err != nil {
			logger.Error("failed to start scheduler", "error", err)
			return 1
		}
	}

	code := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("http server error", "error", err)
		code = 1
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), props.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("scheduled run still in progress at shutdown")
		}
	}

	logger.Info("shutdown complete")
	return code
}

func runCLI(service *pipeline.Service, discord *notification.Discord) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
			fmt.Printf("\033[31mPlease check the input and try again.\033[0m\n")
			fmt.Printf("\033[31mExiting...\033[0m\n")

			errMessage := fmt.Sprintf("CLI panic:\n\n%v\n\nStack trace:\n%s", r, debug.Stack())
			if err := discord.SendError(context.Background(), errMessage); err != nil {
				fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
			}
			os.Exit(1)
		}
	}()

	printBanner()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ui.NewMenu(service, discord, os.Stdin, os.Stdout).Run(ctx)
}
