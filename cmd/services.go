package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"langaccessor/api"
	"langaccessor/api/router/handlers"
	"langaccessor/config"
	"langaccessor/core"
	"langaccessor/database"
	"langaccessor/logger"
	"langaccessor/models"
)

// runtime wires the rule engine, the synchronizer and its scheduler over the open store.
type runtime struct {
	engine    *core.HeaderRuleEngine
	syncer    *core.Synchronizer
	scheduler *core.Scheduler
	tabs      *core.ActiveTabTracker
	commands  *core.CommandHandler
}

func newRuntime(ctx context.Context) (*runtime, error) {
	strategy, err := core.ParseStrategy(config.AppConfig.Sync.Strategy)
	if err != nil {
		return nil, err
	}
	engine := core.NewHeaderRuleEngine(store, config.AppConfig.Rules.MaxRules)
	if err := engine.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading installed rules: %w", err)
	}
	syncer := core.NewSynchronizer(settings, engine, strategy)
	tabs := core.NewActiveTabTracker()
	return &runtime{
		engine:    engine,
		syncer:    syncer,
		scheduler: core.NewScheduler(core.SyncPass(syncer)),
		tabs:      tabs,
		commands:  core.NewCommandHandler(settings, tabs),
	}, nil
}

// serveOptions selects the listeners started by serve. An empty port disables one.
type serveOptions struct {
	apiPort   string
	proxyPort string
}

// serve runs the scheduler, the store watcher and the selected listeners until SIGINT,
// SIGTERM or a fatal listener error.
func serve(opts serveOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}

	var proxy *core.Proxy
	if opts.proxyPort != "" {
		if proxy, err = buildProxy(rt); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.scheduler.Run(ctx)
	}()

	unsubscribe := core.TriggerOnSettingsChange(settings, rt.scheduler)
	defer unsubscribe()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := watchStore(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Serve Goroutine(Watcher): %v. Changes made by other processes will not be picked up.", err)
		}
	}()

	rt.scheduler.Trigger("startup")

	if opts.apiPort != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serveAPI(ctx, rt, opts.apiPort); err != nil {
				logger.Error("Serve Goroutine(API): %v", err)
				cancel()
			}
		}()
	}

	if proxy != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := proxy.ListenAndServe(ctx, ":"+opts.proxyPort); err != nil {
				logger.ProxyError("Serve Goroutine(Proxy): %v", err)
				cancel()
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	logger.Info("Serve: all service goroutines launched. Press Ctrl+C to exit.")
	select {
	case sig := <-sigs:
		logger.Info("Serve: received signal: %s. Initiating shutdown...", sig)
	case <-ctx.Done():
		logger.Info("Serve: context cancelled (likely due to a service error). Initiating shutdown...")
	}
	cancel()

	shutdownComplete := make(chan struct{})
	go func() {
		wg.Wait()
		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		logger.Info("Serve: all services shut down.")
	case <-time.After(10 * time.Second):
		logger.Error("Serve: shutdown timed out. Forcing exit.")
	}
	return nil
}

// watchStore relays edits made by other processes to the local change listeners.
func watchStore(ctx context.Context) error {
	switch s := store.(type) {
	case *database.SQLiteStore:
		if !config.AppConfig.Store.Watch {
			logger.Info("Serve Goroutine(Watcher): store.watch is false, not watching %s", s.Path())
			return nil
		}
		return s.Watch(ctx, models.DomainSettingsKey, models.ExtensionEnabledKey)
	case *database.RedisStore:
		return s.Listen(ctx)
	default:
		return nil
	}
}

func serveAPI(ctx context.Context, rt *runtime, port string) error {
	h := &handlers.Handler{
		Commands: rt.commands,
		Settings: settings,
		Rules:    rt.engine,
		Sync:     rt.scheduler,
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           api.NewServerMux(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Serve Goroutine(API): graceful shutdown failed: %v", err)
		}
	}()

	logger.Info("Serve Goroutine(API): listening on :%s", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API listen on :%s: %w", port, err)
	}
	return nil
}

func buildProxy(rt *runtime) (*core.Proxy, error) {
	if !config.AppConfig.Proxy.MITM {
		return core.NewProxy(rt.engine, rt.tabs), nil
	}
	certPath, keyPath := config.AppConfig.Proxy.CACertPath, config.AppConfig.Proxy.CAKeyPath
	if certPath == "" || keyPath == "" {
		return nil, errors.New("proxy CA certificate or key path not configured; check config or run 'proxy init-ca' first")
	}
	ca, err := core.LoadCA(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'langaccessor proxy init-ca' to create one)", err)
	}
	return core.NewProxy(rt.engine, rt.tabs, core.WithMITM(ca)), nil
}

// portFromFlag prefers the flag when it was set, then the config value, then def.
func portFromFlag(changed bool, flagValue, configValue, def string) string {
	port := configValue
	if changed {
		port = flagValue
	}
	if port == "" {
		port = def
	}
	return port
}
