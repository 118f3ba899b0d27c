package main

import (
	"context"
	"log"

	"ai-deptdocs-be/internal/bootstrap"
	"ai-deptdocs-be/internal/config"
	"ai-deptdocs-be/internal/server"
	"ai-deptdocs-be/internal/tracer"
	"ai-deptdocs-be/pkg/database"

	"github.com/fatih/color"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	color.Cyan("ai-deptdocs-be | DTMI document chatbot backend")

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Enrichment Service...")
		if err := container.EnrichmentService.Consume(context.Background()); err != nil {
			log.Printf("Background Enrichment Error: %v", err)
		}
	}()

	if container.NatsPublisher != nil {
		defer container.NatsPublisher.Close()
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
