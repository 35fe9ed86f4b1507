package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "path to a JSON configuration file")
	listen     = flag.String("listen", "", "listen address (overrides config)")
	devMode    = flag.Bool("dev", false, "development mode: console logs, gin debug output")
	evalPath   = flag.String("eval", "", "evaluate a scene script file, print its meshes as JSON and exit")
)

func loadConfig() (*config.Config, error) {
	cfg := config.Empty()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if *listen != "" {
		cfg.SetListen(*listen)
	}
	if *devMode {
		cfg.SetDevelopment(true)
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	format := cfg.GetLogFormat()
	if cfg.GetDevelopment() {
		format = "console"
	}
	logger, err := logging.New(logging.Config{
		Level:       cfg.GetLogLevel(),
		Format:      format,
		Fields:      map[string]string{"service": "facet"},
		Development: cfg.GetDevelopment(),
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.GetDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build app", zap.Error(err))
	}

	if *evalPath != "" {
		os.Exit(evalFile(app, *evalPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("graceful shutdown complete")
}

// evalFile runs the script at path and writes the result to stdout. The
// exit code is 1 when the script reported errors.
func evalFile(app *App, path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		return 1
	}
	result := app.Evaluate(string(source))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		return 1
	}
	if len(result.Errors) > 0 {
		return 1
	}
	return 0
}
