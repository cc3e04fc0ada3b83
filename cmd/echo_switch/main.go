// echo_switch запускает коммутатор с загруженным эндпоинтом echo и HTTP API
// управления вызовами.
//
//	echo_switch -config echo.toml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/arzzra/echo_endpoint/pkg/config"
	"github.com/arzzra/echo_endpoint/pkg/control"
	"github.com/arzzra/echo_endpoint/pkg/echo"
	"github.com/arzzra/echo_endpoint/pkg/logging"
	"github.com/arzzra/echo_endpoint/pkg/switchcore"
)

const shutdownTimeout = 20 * time.Second

func main() {
	configPath := flag.String("config", "", "путь к TOML конфигурации")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "echo_switch:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if cfg.Log.Level > logging.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	core := switchcore.NewCore(switchcore.Config{
		MaxSessions:      cfg.Core.MaxSessions,
		TransportFactory: cfg.TransportFactory(),
		Logger:           log,
		Registerer:       reg,
	})

	mod := echo.New(echo.Config{
		Name:              cfg.Endpoint.Name,
		HeartbeatInterval: cfg.Endpoint.Heartbeat,
		MediaParams:       cfg.MediaParams(),
		DTMFType:          cfg.Media.DTMFType,
		Logger:            log,
		Registerer:        reg,
	})
	if err := core.LoadModule(rootCtx, mod); err != nil {
		return fmt.Errorf("load module %s: %w", mod.Name(), err)
	}

	api := control.New(core, control.Config{
		Endpoint: mod.Name(),
		Logger:   log,
		Gatherer: reg,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info(rootCtx, "api слушает", logging.String("addr", srv.Addr), logging.String("endpoint", mod.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(rootCtx, err, "ошибка http сервера")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info(context.Background(), "остановка")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(shutdownCtx, err, "ошибка остановки http сервера")
	}
	return core.Shutdown(shutdownCtx)
}
