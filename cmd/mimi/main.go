package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/mimi-dispatch/internal/config"
	"github.com/kursadbilgin/mimi-dispatch/internal/mailer"
	"github.com/kursadbilgin/mimi-dispatch/internal/observability"
	"github.com/kursadbilgin/mimi-dispatch/internal/provider"
	"github.com/kursadbilgin/mimi-dispatch/internal/service"
	"go.uber.org/zap"
)

const (
	usage = `usage:
  mimi send -action mimi_<name> -to <address[,address...]> [options]
  mimi add-to-list -email <address> -list <list name>`

	pushTimeout = 5 * time.Second
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	runErr := run(ctx, cfg, logger, metrics, os.Stdout, os.Args[1], os.Args[2:])
	pushMetrics(cfg, logger, metrics)

	if runErr != nil {
		logger.Error("mimi command failed", zap.String("command", os.Args[1]), zap.Error(runErr))
		stop()
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
	out io.Writer,
	command string,
	args []string,
) error {
	registry := service.NewRegistry()

	var (
		sendOpts *sendOptions
		email    string
		list     string
	)
	switch command {
	case "send":
		opts, err := parseSendOptions(args)
		if err != nil {
			return err
		}
		if err := registry.Register(opts.Action, opts.compose); err != nil {
			return err
		}
		sendOpts = opts

	case "add-to-list":
		fs := flag.NewFlagSet("add-to-list", flag.ContinueOnError)
		fs.StringVar(&email, "email", "", "address of an existing audience member")
		fs.StringVar(&list, "list", "", "audience list name")
		if err := fs.Parse(args); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	svc, err := newDeliveryService(cfg, registry, logger)
	if err != nil {
		return err
	}
	svc.SetMetrics(metrics)

	if sendOpts == nil {
		body, err := svc.AddAudienceListMembership(ctx, email, list)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, body)
		return nil
	}

	result, err := svc.Deliver(ctx, sendOpts.Action, nil)
	if err != nil {
		return err
	}
	for _, body := range result.Responses {
		fmt.Fprintln(out, body)
	}
	return nil
}

func newDeliveryService(cfg *config.Config, registry *service.Registry, logger *zap.Logger) (*service.DeliveryService, error) {
	defaults, err := cfg.Defaults()
	if err != nil {
		return nil, err
	}

	mimi, err := provider.NewMadMimiProvider(provider.Options{
		Credentials:      cfg.Credentials(),
		SingleSendURL:    cfg.SingleSendURL,
		AudienceListsURL: cfg.AudienceListsURL,
		Timeout:          cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("provider initialization failed: %w", err)
	}

	return service.NewDeliveryService(
		registry,
		mailer.NewBuilder(cfg.Credentials(), defaults),
		mimi,
		service.DeliveryOptions{
			Method:            service.DeliveryMethod(cfg.DeliveryMethod),
			PerformDeliveries: cfg.PerformDeliveries,
		},
		logger,
	)
}

// pushMetrics hands the collected samples to the Pushgateway, if one is
// configured. A failed push is logged and never changes the exit code.
func pushMetrics(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) {
	if cfg.PushgatewayURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := metrics.Push(ctx, cfg.PushgatewayURL, observability.PushJob); err != nil {
		logger.Warn("metrics push failed", zap.String("gateway", cfg.PushgatewayURL), zap.Error(err))
	}
}
