package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"clinicchat/config"
	"clinicchat/services/knowledgebase"
)

// indexdocs ingests a directory of .txt documents into the knowledge base,
// using each file's base name (without extension) as the document id.
func main() {
	dir := flag.String("dir", "data/docs", "directory containing .txt documents to ingest")
	flag.Parse()

	log.Printf("[INFO] Starting document ingestion from %s", *dir)

	cfg := config.Load()

	if cfg.PineconeAPIKey == "" {
		log.Fatal("[ERROR] PINECONE_API_KEY environment variable is required")
	}

	if cfg.OpenAIAPIKey == "" {
		log.Fatal("[ERROR] OPENAI_API_KEY environment variable is required")
	}

	kbService, err := knowledgebase.NewService(cfg.PineconeAPIKey, cfg.OpenAIAPIKey, cfg.PineconeIndexName)
	if err != nil {
		log.Fatalf("[ERROR] Failed to initialize knowledge base service: %v", err)
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatalf("[ERROR] Failed to read directory %s: %v", *dir, err)
	}

	ctx := context.Background()
	ingested := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}

		path := filepath.Join(*dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			log.Printf("[ERROR] Failed to read %s: %v", path, err)
			continue
		}

		docID := strings.TrimSuffix(entry.Name(), ".txt")

		log.Printf("[INFO] Ingesting %s as document %q", path, docID)
		if err := kbService.Add(ctx, docID, string(content)); err != nil {
			log.Printf("[ERROR] Failed to ingest %s: %v", path, err)
			continue
		}

		ingested++
	}

	log.Printf("[INFO] Document ingestion completed, %d documents ingested", ingested)
}
