package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"forum/internal/config"
	"forum/internal/services/forum"
	"forum/internal/storage/mongodb"
	"forum/internal/storage/sqlite"
)

func main() {
	var configPath string
	var seedTags string
	flag.StringVar(&configPath, "config", "", "path to config file (or use CONFIG_PATH env)")
	flag.StringVar(&seedTags, "seed-tags", "", "comma-separated tag names to create")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	cfg := config.MustLoadPath(configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.Storage {
	case config.StorageSQLite:
		log.Printf("Migrating sqlite database %s...", cfg.StoragePath)

		storage, err := sqlite.New(cfg.StoragePath)
		if err != nil {
			log.Fatalf("failed to open sqlite: %v", err)
		}
		defer storage.Close()

		if err := storage.Migrate(); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		seed(ctx, storage, seedTags)
	default:
		log.Println("Connecting to MongoDB...")

		storage, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.Fatalf("failed to connect to mongodb: %v", err)
		}
		defer storage.Close(ctx)

		log.Println("MongoDB connected, indexes created successfully")
		seed(ctx, storage, seedTags)
	}

	fmt.Println("Database initialization completed successfully")
}

func seed(ctx context.Context, tags forum.TagUpserter, names string) {
	if names == "" {
		return
	}

	for _, name := range strings.Split(names, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		tag, err := tags.UpsertTag(ctx, name)
		if err != nil {
			log.Fatalf("failed to seed tag %q: %v", name, err)
		}
		log.Printf("Tag seeded (id=%s, name=%s)", tag.ID, tag.Name)
	}
}
