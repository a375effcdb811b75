package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screencheck/internal/capture"
	"screencheck/internal/config"
	"screencheck/internal/persist"
	"screencheck/internal/realtime"
	"screencheck/internal/store"
	"screencheck/internal/summary"
)

const configFile = "screencheck.yaml"

func main() {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg.ApplyEnv()

	// Durable record store shared by the controller's recorder and the
	// summary reader.
	recordStore, err := store.Open(cfg.StoreDir)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}

	// Capture source. The synthetic provider keeps the pipeline runnable
	// without a real capture device.
	provider := &capture.SyntheticProvider{
		Width:     cfg.Synthetic.Width,
		Height:    cfg.Synthetic.Height,
		FrameRate: cfg.Synthetic.FrameRate,
		Surface:   cfg.Synthetic.Surface,
		Label:     cfg.Synthetic.Label,
	}

	recorder := persist.NewRecorder(
		recordStore,
		time.Duration(cfg.PersistTickMS)*time.Millisecond,
		cfg.FrameEvery,
	)
	controller := capture.NewController(provider, recorder)

	reader := summary.NewReader(recordStore, time.Duration(cfg.SummaryPollMS)*time.Millisecond)
	reader.Start()

	rtServer := realtime.New(controller, reader, cfg.StaticDir)
	rtServer.Start()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: rtServer.Handler(),
	}

	// Graceful shutdown on signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("Shutting down...")
		controller.Reset()
		rtServer.Close()
		reader.Close()
		recordStore.Close()
		httpServer.Close()
	}()

	log.Printf("screencheck running on http://localhost:%d", cfg.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
