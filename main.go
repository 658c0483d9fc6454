// @title Lesson Bundle API
// @version 1.0
// @description Lesson bundle generation and quiz scoring service: teacher note, learner note and quiz generated together, auto-graded with badge awards.

// @contact.name API Support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"lesson_bundle_backend/internal/app"
	"lesson_bundle_backend/internal/config"
	"lesson_bundle_backend/pkg/logger"
	"log"

	"github.com/joho/godotenv"
)

func main() {
		configDir := flag.String("config", "configs", "config directory")
	migrateOnly := flag.Bool("migrate-only", false, "run database migrations and exit")
	migrate := flag.Bool("migrate", false, "force migrations on startup, even in release mode")
	flag.Parse()

	// .env is optional
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

		cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg, *configDir)
	defer logger.Log.Sync()

		if *migrateOnly {
		log.Println("migrations complete, exiting")
		return
	}

	application.Run()
}
