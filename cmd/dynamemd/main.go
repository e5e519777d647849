// Command dynamemd runs the assistant service: HTTP and websocket
// boundary, per-user vector memory, and the uncertainty-gated
// active-learning loop.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dynamem/dynamem/config"
	"github.com/dynamem/dynamem/engine"
	"github.com/dynamem/dynamem/learner"
	"github.com/dynamem/dynamem/memory"
	"github.com/dynamem/dynamem/memory/embedder/cached"
	"github.com/dynamem/dynamem/memory/embedder/mock"
	"github.com/dynamem/dynamem/memory/embedder/openai"
	"github.com/dynamem/dynamem/model"
	"github.com/dynamem/dynamem/model/anthropicmodel"
	"github.com/dynamem/dynamem/model/hfserve"
	"github.com/dynamem/dynamem/rescache"
	"github.com/dynamem/dynamem/server"
	"github.com/dynamem/dynamem/store"
)

func main() {
	configPath := flag.String("config", "", "path to config YAML (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[MAIN] Load config: %v", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("[MAIN] Open store: %v", err)
	}
	defer st.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		log.Fatalf("[MAIN] Build embedder: %v", err)
	}

	opts := []engine.Option{
		engine.WithThreshold(cfg.TuneThreshold),
		engine.WithTopK(cfg.RetrievalTopK),
	}
	if cfg.ResponseCache {
		opts = append(opts, engine.WithResponseCache(rescache.New(embedder, 0)))
	}

	var responder engine.Responder
	switch cfg.Backend {
	case config.BackendLocal:
		client, err := hfserve.New(hfserve.Config{BaseURL: cfg.ModelBaseURL})
		if err != nil {
			log.Fatalf("[MAIN] Build model client: %v", err)
		}
		lrn := learner.New(client)
		responder = engine.NewLocalResponder(client, lrn, model.DefaultGenerateParams())
		opts = append(opts, engine.WithActiveLearning(lrn, client, st))
		log.Printf("[MAIN] Backend: local model sidecar at %s", cfg.ModelBaseURL)

	case config.BackendAnthropic:
		client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
		responder = anthropicmodel.New(&client, anthropicmodel.Config{Model: cfg.AnthropicModel})
		log.Printf("[MAIN] Backend: anthropic (active learning disabled)")
	}

	eng := engine.New(embedder, st, responder, opts...)
	srv := server.New(eng, st)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[MAIN] Listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[MAIN] Serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[MAIN] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[MAIN] Shutdown: %v", err)
	}
}

func buildEmbedder(cfg config.Config) (memory.Embedder, error) {
	var embedder memory.Embedder
	switch cfg.Embedder {
	case config.EmbedderOpenAI:
		emb, err := openai.New(openai.Config{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		})
		if err != nil {
			return nil, err
		}
		embedder = emb
	default:
		embedder = mock.New(cfg.EmbedderDims)
	}

	if cfg.EmbedderCache {
		return cached.New(embedder, 0)
	}
	return embedder, nil
}
