// Package server wires configuration, storage, domain services and the
// transports together and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/passm/internal/cryptox"
	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/dmitrijs2005/passm/internal/server/config"
	"github.com/dmitrijs2005/passm/internal/server/delivery"
	"github.com/dmitrijs2005/passm/internal/server/httpapi"
	"github.com/dmitrijs2005/passm/internal/server/janitor"
	"github.com/dmitrijs2005/passm/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passm/internal/server/services"
	"github.com/dmitrijs2005/passm/internal/timex"

	gs "github.com/dmitrijs2005/passm/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    repomanager.Store
	accounts *services.AccountService
	gate     *services.OTPGate
	vault    *services.VaultService
	exporter *services.ExportService
	janitor  *janitor.Janitor
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, os.Stdout)
	if err != nil {
		return nil, err
	}

	store, err := repomanager.Open(c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := store.RunMigrations(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	cipher, err := cryptox.NewCipher(cryptox.DeriveKey([]byte(c.EncryptionKey), []byte(c.EncryptionSalt)), nil)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	var sender delivery.Sender
	if c.SMTPHost != "" {
		smtpSender, err := delivery.NewSMTPSender(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.SMTPFrom, c.SMTPTimeout)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		sender = smtpSender
	} else {
		logger.Warn(ctx, "SMTP host not set, codes are written to the log")
		sender = delivery.NewLogSender(logger)
	}

	clock := timex.SystemClock{}
	accounts := services.NewAccountService(store, c, clock, logger)
	gate := services.NewOTPGate(store, sender, c, clock, nil, logger)
	vault := services.NewVaultService(store, cipher, gate, clock, logger)
	exporter := services.NewExportService(store, gate, c, clock, logger)

	return &App{
		config:   c,
		logger:   logger,
		store:    store,
		accounts: accounts,
		gate:     gate,
		vault:    vault,
		exporter: exporter,
		janitor:  janitor.New(store, clock, c.OTPRateWindow, c.JanitorSchedule, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.accounts, app.gate, app.vault, app.exporter)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := httpapi.NewHandler(app.accounts, app.gate, app.vault, app.exporter, app.config.SessionTTL, app.logger)
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, h, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or a transport fails, then closes the
// store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.janitor.Start(ctx); err != nil {
		app.logger.Error(ctx, "janitor start", "error", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrHTTP != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	app.janitor.Stop()
	if err := app.store.Close(); err != nil {
		app.logger.Error(context.Background(), "store close", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
