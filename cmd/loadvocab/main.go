package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/vocab"
)

// loadvocab converts a directory of vocabulary table files into a single
// sqlite snapshot file that the server can open directly.
func main() {
	var (
		srcDir = flag.String("src", "", "directory containing the vocabulary CSV/TSV files")
		out    = flag.String("out", "vocab.db", "path of the sqlite snapshot to create")
	)
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *srcDir == "" {
		log.Fatal("missing -src directory")
	}
	if _, err := os.Stat(*out); err == nil {
		log.Fatal("output file already exists, refusing to overwrite", "out", *out)
	}

	db, err := gorm.Open(sqlite.Open(*out), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatal("Failed to create snapshot file", "out", *out, "error", err)
	}

	store := vocab.NewStore(log)
	snap, err := store.LoadDirectoryInto(context.Background(), *srcDir, db)
	if err != nil {
		log.Fatal("Snapshot load failed", "src", *srcDir, "error", err)
	}

	counts, err := snap.TableCounts(context.Background())
	if err != nil {
		log.Fatal("Snapshot verification failed", "error", err)
	}
	log.Info("Snapshot written",
		"out", *out,
		"concepts", counts["concept"],
		"relationships", counts["concept_relationship"],
		"ancestors", counts["concept_ancestor"],
		"synonyms", counts["concept_synonym"],
		"relationship_kinds", counts["relationship"],
	)
}
