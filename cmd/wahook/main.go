package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caam1406/wahook/pkg/api"
	"github.com/caam1406/wahook/pkg/bus"
	"github.com/caam1406/wahook/pkg/config"
	"github.com/caam1406/wahook/pkg/gateway"
	"github.com/caam1406/wahook/pkg/logger"
	"github.com/caam1406/wahook/pkg/session"
	"github.com/caam1406/wahook/pkg/webhook"
)

func main() {
	configPath := flag.String("config", "", "path to the config store (defaults to ~/.wahook/wahook.db)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.LogLevel)

	if token, generated, err := cfg.EnsureAPIToken(); err != nil {
		logger.ErrorCF("main", "Failed to generate API token", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	} else if generated {
		if err := cfg.Save(); err != nil {
			logger.ErrorCF("main", "Failed to persist generated API token", map[string]interface{}{
				"error": err.Error(),
			})
			os.Exit(1)
		}
		logger.InfoCF("main", "Generated API token", map[string]interface{}{
			"token": token,
		})
	}

	// Stable view of the settings for wiring; cfg itself stays the writable
	// handle for the store.
	snap := cfg.Snapshot()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := session.OpenCredentialStore(ctx, snap.Channels.WhatsApp)
	if err != nil {
		logger.ErrorCF("main", "Failed to open credential store", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	msgBus := bus.NewMessageBus()

	factory := func(ctx context.Context) (session.Transport, error) {
		return session.NewWhatsAppTransport(ctx, snap.Channels.WhatsApp, creds)
	}
	controller := session.NewController(factory, creds, msgBus)

	dispatcher := webhook.NewDispatcher(snap.Webhook, msgBus)
	go dispatcher.Run(ctx)

	sendGateway := gateway.NewGateway(controller)

	server := api.NewServer(snap.API, controller, sendGateway, msgBus)
	if err := server.Start(ctx); err != nil {
		logger.ErrorCF("main", "Failed to start API server", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	webhookState := "not set"
	if snap.Webhook.URL != "" {
		webhookState = snap.Webhook.URL
	}
	startupFields := map[string]interface{}{
		"api":     fmt.Sprintf("%s:%d", snap.API.Host, snap.API.Port),
		"webhook": webhookState,
	}
	if snap.API.AuthEnabled {
		startupFields["token"] = config.MaskSecret(snap.API.Token)
	}
	logger.InfoCF("main", "wahook started", startupFields)

	// Blocks until SIGINT/SIGTERM.
	controller.Run(ctx)

	logger.InfoC("main", "Shutting down")
	server.Stop()
	msgBus.Close()
}
