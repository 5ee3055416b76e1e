package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backupd/internal/app"
	"backupd/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./backupd.yaml", "path to config (yaml or json); defaults apply when missing")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Used until the configured log service exists and after it is closed.
	boot := logx.NewConsole("info").With(logx.String("comp", "main"))

	svc, err := app.NewService(cfgPath)
	if err != nil {
		boot.Error("backup_service failed to start", logx.String("config", cfgPath), logx.Err(err))
		os.Exit(1)
	}
	if err := svc.Start(ctx); err != nil {
		boot.Error("backup_service failed to start", logx.Err(err))
		os.Exit(1)
	}

	reason := app.StopUnknown
	select {
	case sig := <-sigs:
		reason = app.StopSIGTERM
		if sig == os.Interrupt {
			reason = app.StopSIGINT
		}
	case <-svc.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	fatal := svc.Err()
	_ = svc.Stop(stopCtx, reason)
	if fatal != nil {
		boot.Error("backup_service stopped on fatal error", logx.String("reason", string(reason)), logx.Err(fatal))
		os.Exit(1)
	}
}
