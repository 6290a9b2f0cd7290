package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"indexgateway/pkg/gateway"
	"indexgateway/pkg/logger"
	"indexgateway/pkg/settings"
)

// App wires the Settings & Directory Provider to the Gateway and owns
// their startup/shutdown lifecycle, in the same shape as the
// notes-app host this module was extracted from: collaborators are
// constructed explicitly and handed in, rather than reached for via
// package-level globals.
type App struct {
	cfg *settings.Settings
	gw  *gateway.Gateway
}

// NewApp creates a new App with default settings.
func NewApp() *App {
	return &App{cfg: settings.Get()}
}

func (a *App) loadSettings() error {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	return a.cfg.LoadFromFile(filepath.Join(configDir, "indexgateway", "settings.json"))
}

// startup initializes settings, opens the index, and starts the
// worker. It mirrors the notes-app host's startup hook: load config,
// then bring up the one stateful subsystem that depends on it.
func (a *App) startup() error {
	timer := logger.StartTimer()
	logger.Info("indexgateway startup initiated")

	if err := a.loadSettings(); err != nil {
		logger.WarnWithFields(context.Background(), map[string]interface{}{"error": err.Error()}, "Failed to load settings, using defaults")
	}

	a.gw = gateway.New(a.cfg.Dir(), a.cfg.IndexMapping(), a.cfg)
	if err := a.gw.Start(); err != nil {
		return err
	}

	go a.logCompletions()

	logger.InfoWithDuration(context.Background(), timer(), "indexgateway startup completed")
	return nil
}

func (a *App) logCompletions() {
	for event := range a.gw.Completions() {
		if event.Err != nil {
			logger.WarnWithFields(context.Background(), map[string]interface{}{
				"operation": event.Operation.Kind.String(),
				"error":     event.Err.Error(),
			}, "index operation completed with error")
			continue
		}
		logger.Debug("index operation completed: %s", event.Operation.Kind)
	}
}

// shutdown stops the worker and closes the index.
func (a *App) shutdown() {
	if a.gw != nil {
		a.gw.Dispose()
	}
}

func main() {
	if err := logger.Initialize(logger.Config{
		Level:         logger.INFO,
		LogDir:        "logs",
		FileName:      "indexgateway.log",
		MaxFileSize:   10 * 1024 * 1024,
		MaxBackups:    5,
		ConsoleOutput: true,
		ConsoleColor:  true,
	}); err != nil {
		println("Failed to initialize logger:", err.Error())
	}
	defer logger.GetDefault().Close()

	app := NewApp()
	if err := app.startup(); err != nil {
		logger.Fatal("startup failed: %v", err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, draining and closing index")
	app.shutdown()
}
