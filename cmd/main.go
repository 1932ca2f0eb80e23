package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/askdocs/askdocs/internal/models"
	"github.com/askdocs/askdocs/internal/types"
	"github.com/askdocs/askdocs/pkg/chunker"
	cfgPkg "github.com/askdocs/askdocs/pkg/config"
	"github.com/askdocs/askdocs/pkg/llm"
	"github.com/askdocs/askdocs/pkg/pipeline"
	"github.com/askdocs/askdocs/pkg/rag"
	"github.com/askdocs/askdocs/pkg/scraper"
	"github.com/askdocs/askdocs/pkg/store"
	"github.com/askdocs/askdocs/server"
)

type flags struct {
	configPath  string
	serve       bool
	ingestPath  string
	docsURL     string
	noRetrieval bool
}

func main() {
	f := parseFlags()

	if err := run(f); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.BoolVar(&f.serve, "serve", false, "Start the HTTP server instead of the chat loop")
	flag.StringVar(&f.ingestPath, "ingest", "", "Markdown or text file to ingest before chatting")
	flag.StringVar(&f.docsURL, "docs-url", "", "Documentation URL to crawl and ingest")
	flag.BoolVar(&f.noRetrieval, "no-retrieval", false, "Answer from general knowledge, skip the stored corpus")
	flag.Parse()
	return f
}

func run(f flags) error {
	// .env is optional; it only feeds the env merge below.
	_ = godotenv.Load()

	cfg, err := cfgPkg.LoadConfig(f.configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	gateway, err := llm.NewGateway(llm.GatewayConfig{
		BaseURL:         cfg.LLM.BaseURL,
		EmbedModel:      cfg.LLM.EmbedModel,
		ChatModel:       cfg.LLM.ChatModel,
		MaxTokens:       cfg.LLM.MaxTokens,
		Temperature:     cfg.LLM.Temperature,
		EmbedTimeout:    time.Duration(cfg.LLM.EmbedTimeout) * time.Second,
		GenerateTimeout: time.Duration(cfg.LLM.GenerateTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize model gateway: %w", err)
	}

	var (
		embeddings types.EmbeddingStore
		documents  types.DocumentStore
		closeStore func()
	)
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgres(context.Background(), store.PostgresConfig{
			ConnString: cfg.Database.URL,
			VectorDim:  cfg.Database.VectorDim,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize vector store: %w", err)
		}
		embeddings, documents, closeStore = pg, pg, pg.Close
	} else {
		color.Yellow("DATABASE_URL not set, using in-memory store (nothing persists)")
		mem := store.NewMemory()
		embeddings, documents, closeStore = mem, mem, func() {}
	}
	defer closeStore()

	ingestor := pipeline.New(pipeline.Config{
		Chunking: chunker.Options{
			MinTokens:     cfg.Chunker.MinTokens,
			MaxTokens:     cfg.Chunker.MaxTokens,
			OverlapTokens: cfg.Chunker.OverlapTokens,
			CharsPerToken: cfg.Chunker.CharsPerToken,
		},
	}, gateway, embeddings, documents)

	orchestrator := rag.New(rag.Config{DefaultTopK: cfg.Retrieval.TopK}, gateway, embeddings, documents)

	if f.ingestPath != "" {
		if err := ingestFile(ingestor, f.ingestPath); err != nil {
			return err
		}
	}

	if f.docsURL != "" {
		if err := ingestDocs(ingestor, cfg, f.docsURL); err != nil {
			return err
		}
	}

	if f.serve {
		srv := server.New(ingestor, orchestrator, gateway, embeddings, documents)
		addr := ":" + cfg.Server.Port
		log.Printf("Starting server on %s", addr)
		return http.ListenAndServe(addr, srv.Handler())
	}

	return chatLoop(orchestrator, gateway, !f.noRetrieval)
}

func ingestFile(ingestor *pipeline.Ingestor, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	bar := getProgressBar(-1, "Embedding chunks...")
	ingestor = ingestor.WithOnChunk(func(models.Chunk) { bar.Add(1) })

	docID, chunks, err := ingestor.IngestDocument(context.Background(), filepath.Base(path), string(data))
	bar.Finish()
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %w", path, err)
	}
	color.Green("\n✓ Ingested %s as document %d (%d chunks)\n", path, docID, chunks)
	return nil
}

func ingestDocs(ingestor *pipeline.Ingestor, cfg *cfgPkg.Config, docsURL string) error {
	var scraped int32
	s, err := scraper.New(scraper.Config{
		BaseURL:           docsURL,
		MaxDepth:          cfg.Scraper.MaxDepth,
		RateLimit:         cfg.Scraper.RateLimit,
		IgnorePatterns:    cfg.Scraper.IgnorePatterns,
		AllowedExtensions: cfg.Scraper.AllowedExtensions,
		OnProgress: func(string) {
			atomic.AddInt32(&scraped, 1)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	color.Blue("\nCrawling %s\n", docsURL)
	crawlBar := getProgressBar(-1, "Crawling documentation...")
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(100 * time.Millisecond):
				crawlBar.Set(int(atomic.LoadInt32(&scraped)))
			}
		}
	}()

	pages, err := s.Scrape(context.Background(), docsURL)
	close(done)
	crawlBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to crawl documentation: %w", err)
	}
	color.Green("\n✓ Crawled %d pages\n", len(pages))

	ingestBar := getProgressBar(len(pages), "Ingesting pages...")
	for _, page := range pages {
		if strings.TrimSpace(page.Content) == "" {
			ingestBar.Add(1)
			continue
		}
		name := page.Title
		if name == "" {
			name = page.URL
		}
		if _, _, err := ingestor.IngestDocument(context.Background(), name+".md", page.Content); err != nil {
			return fmt.Errorf("failed to ingest %s: %w", page.URL, err)
		}
		ingestBar.Add(1)
	}
	color.Green("\n✓ Ingestion complete\n")
	return nil
}

func chatLoop(orchestrator *rag.Orchestrator, gateway types.Gateway, useRetrieval bool) error {
	if !gateway.IsAvailable(context.Background()) {
		color.Yellow("Warning: model backend is not reachable; answers will fail until it is up")
	}

	color.Cyan("\nAsk your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			break
		}

		spinner := getSpinner("Thinking...")
		var (
			answer models.Answer
			err    error
		)
		if useRetrieval {
			answer, err = orchestrator.AnswerFromDocuments(context.Background(), question, 0)
		} else {
			answer, err = orchestrator.Answer(context.Background(), question, 0, false)
		}
		spinner.Finish()
		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		fmt.Print("\n")
		assistantPrompt("Assistant: %s\n", answer.Answer)
		if len(answer.Sources) > 0 {
			color.Blue("\nSources:")
			for _, src := range answer.Sources {
				color.Blue("  %s (%s)", src.Key, src.Percent)
			}
		}
	}

	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
