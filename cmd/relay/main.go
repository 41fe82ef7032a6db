package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"talkback-relay/internal/api"
	"talkback-relay/internal/config"
	"talkback-relay/internal/relay"
	"talkback-relay/internal/store"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if len(cfg.Cameras) == 0 {
		log.Printf("warning: no cameras configured, every start will be rejected")
	}

	st, err := store.Open(cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("event store: %v", err)
	}
	defer st.Close()

	registry := relay.NewRegistry()
	gateway := relay.NewGateway(cfg, registry)

	// Wire session lifecycle events to the event log
	gateway.SetEventCallback(func(cameraID, eventType, message string) {
		if err := st.RecordEvent(cameraID, eventType, message); err != nil {
			log.Printf("record event: %v", err)
		}
	})

	wsRouter := gin.New()
	wsRouter.Use(gin.Recovery())
	wsRouter.GET("/ws", gateway.HandleWS)

	wsAddr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	wsSrv := &http.Server{Addr: wsAddr, Handler: wsRouter}

	healthAddr := fmt.Sprintf("%s:%d", cfg.Health.Host, cfg.Health.Port)
	apiSrv := api.NewServer(healthAddr, registry, cfg.Cameras, st)

	go func() {
		if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("gateway server: %v", err)
		}
	}()
	go func() {
		if err := apiSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("health server: %v", err)
		}
	}()

	log.Printf("talkback relay on %s, health on %s (%d cameras configured)",
		wsAddr, healthAddr, len(cfg.Cameras))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("shutting down...")
	gateway.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wsSrv.Shutdown(ctx)
	apiSrv.Shutdown(ctx)

	log.Println("talkback relay stopped")
}
