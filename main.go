package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cabinetkey/app"
	"cabinetkey/config"
	"cabinetkey/lending"
	"cabinetkey/notify"
	"cabinetkey/routes"
	"cabinetkey/session"
)

func main() {
	config.LoadEnv()
	application := app.MustNew()
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := routes.RegisterRoutes(application.Router, application)
	app.BootstrapAdmins(ctx, s.Accounts)

	// 逾期巡检：多实例时用 redis 锁选出一个执行者
	var notifier lending.Notifier = notify.NewRedisPublisher(application.RDB, application.Config.OverdueChannel)
	if application.Config.OverdueChannel == "off" {
		notifier = notify.LogPublisher{Log: application.Log}
	}
	monitor := lending.NewMonitor(
		s.Repo,
		notifier,
		application.Config.SweepInterval,
		lending.WithLocker(session.NewLock(application.RDB)),
		lending.WithLogger(application.Log),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              ":" + application.Config.Port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	<-done
}
