package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"novyn/chat"
	"novyn/config"
	"novyn/handlers"
	"novyn/store"
)

func main() {
	cfg := config.Load()

	st := store.Open(cfg.DatabasePath, cfg.DataFile)
	defer st.Close()

	state := chat.NewState(cfg.RetentionDays, config.MinPasswordLength)

	ctx := context.Background()
	if snap := store.LoadSnapshot(ctx, st, cfg.DataFile); snap != nil {
		state.Restore(snap)
	}

	if state.Prune(time.Now()) {
		if err := st.Save(ctx, state.Snapshot()); err != nil {
			log.Printf("Failed to persist pruned state: %v", err)
		}
		log.Printf("Pruned expired messages older than %d day(s)", cfg.RetentionDays)
	}

	srv := handlers.NewServer(state)
	scheduler := store.NewScheduler(st, srv.Snapshot)
	srv.SetPersister(scheduler)

	router := mux.NewRouter()
	router.HandleFunc("/ws", srv.HandleWebSocket)
	router.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))

	retentionTicker := time.NewTicker(time.Hour)
	go func() {
		for range retentionTicker.C {
			srv.RunRetention()
		}
	}()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		storage := "file"
		if _, ok := st.(*store.SQLiteStore); ok {
			storage = "sqlite"
		}
		log.Printf("Chat server running on http://localhost:%s | retention=%d day(s) | storage=%s", cfg.Port, cfg.RetentionDays, storage)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	retentionTicker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	scheduler.Stop()
	if err := scheduler.Flush(shutdownCtx); err != nil {
		log.Printf("Failed to persist state during shutdown: %v", err)
	}
}
