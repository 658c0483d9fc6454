// Prunes learner-note views on demand.
//
// The server runs the same job on note_view.prune_schedule; use this after
// lowering retention_days to apply it right away.
//
// Usage: go run scripts/prune_note_views.go [-config configs]

package main

import (
	"context"
	"flag"
	"lesson_bundle_backend/internal/config"
	"lesson_bundle_backend/internal/repository"
	"lesson_bundle_backend/internal/service"
	"lesson_bundle_backend/pkg/database"
	"lesson_bundle_backend/pkg/logger"
	"log"
	"time"
)

func main() {
	configDir := flag.String("config", "configs", "config directory")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}

	views := service.NewNoteViewService(
		repository.NewTxRunner(db),
		repository.NewNoteViewRepository(db),
		repository.NewNoteRepository(db),
		repository.NewBundleRepository(db),
		rdb,
		cfg.NoteView,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	log.Println("pruning note views...")
	n, err := views.PruneViews(ctx)
	if err != nil {
		log.Fatalf("prune failed: %v", err)
	}
	log.Printf("done, deleted %d views", n)
}
