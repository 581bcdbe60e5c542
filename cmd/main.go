package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/mixcore/pkg/runtime"
)

func main() {
	configPath := flag.String("config", "", "path to a config file; defaults to conf.yaml under the root dir")
	flag.Parse()

	server, err := runtime.New(*configPath)
	if err != nil {
		fallback, _ := zap.NewProduction()
		defer fallback.Sync()
		fallback.Fatal("failed to start mixcore", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-errCh:
		if err != nil {
			fallback, _ := zap.NewProduction()
			fallback.Error("http server error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Error("shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
