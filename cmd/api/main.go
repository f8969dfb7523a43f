package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filecrate.org/internal/blob"
	"filecrate.org/internal/httpapi"
	"filecrate.org/internal/obs"
	"filecrate.org/internal/resource"
	"filecrate.org/internal/session"
	"filecrate.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("FILECRATE_PG_DSN")
	if dsn == "" {
		log.Fatal("missing FILECRATE_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	blobDir := os.Getenv("FILECRATE_BLOB_DIR")
	if blobDir == "" {
		blobDir = "data/blobs"
	}
	blobs, err := blob.NewFileSystem(blobDir)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	sessions := session.NewService(store, store)
	resources := resource.NewService(store, store, blobs)

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, httpapi.Deps{
		Users:     store,
		Roles:     store,
		Sessions:  sessions,
		Resources: resources,
	})

	addr := os.Getenv("FILECRATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting filecrate-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
