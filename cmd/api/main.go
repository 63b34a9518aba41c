// Command api serves the document pipeline over HTTP: start and resume runs,
// answer clarification questions, watch progress over a websocket, and
// download the finished bundle.
package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"draftforge/internal/checkpoint"
	"draftforge/internal/config"
	"draftforge/internal/llm"
	llmclient "draftforge/internal/llmClient"
	"draftforge/internal/packaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	gw, err := buildGateway(ctx, cfg)
	if err != nil {
		log.Fatalf("init providers: %v", err)
	}
	defer gw.Close()

	kv, err := buildKV(cfg)
	if err != nil {
		log.Fatalf("init checkpoint store: %v", err)
	}

	var uploader *packaging.Uploader
	if cfg.Bundle.Endpoint != "" && cfg.Bundle.AccessKey != "" {
		uploader, err = packaging.NewUploader(packaging.S3Options{
			Endpoint:  cfg.Bundle.Endpoint,
			Region:    cfg.Bundle.Region,
			AccessKey: cfg.Bundle.AccessKey,
			SecretKey: cfg.Bundle.SecretKey,
			Bucket:    cfg.Bundle.Bucket,
			UseSSL:    cfg.Bundle.UseSSL,
		})
		if err != nil {
			log.Printf("bundle uploads disabled: %v", err)
			uploader = nil
		}
	}

	reg, err := newRunRegistry(cfg, gw, kv, uploader)
	if err != nil {
		log.Fatalf("init run registry: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/runs", reg.handleStart)
	mux.HandleFunc("/runs/resume", reg.handleResume)
	mux.HandleFunc("/runs/status", reg.handleStatus)
	mux.HandleFunc("/runs/recent", reg.handleRecent)
	mux.HandleFunc("/runs/clarify", reg.handleClarify)
	mux.HandleFunc("/runs/bundle", reg.handleBundle)
	mux.HandleFunc("/ws/runs", reg.handleWatchWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "time": time.Now().UTC()})
	})

	// Simple CORS middleware
	h := http.Handler(mux)
	h = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if r.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, r)
		})
	}(h)

	log.Printf("Starting API server on %s", cfg.Port)
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(h, &http2.Server{})))
}

func buildGateway(ctx context.Context, cfg *config.Config) (*llm.Gateway, error) {
	gw := llm.New(llm.Options{
		Observer: func(attempt int, delay time.Duration) {
			log.Printf("provider busy, retrying (attempt %d failed, waiting %s)", attempt, delay)
		},
	})
	if cfg.GeminiAPIKey != "" {
		c, err := llmclient.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		gw.Register("gemini", c)
	}
	if cfg.GroqAPIKey != "" {
		c, err := llmclient.NewGroqClient(cfg.GroqAPIKey)
		if err != nil {
			return nil, err
		}
		gw.Register("groq", c)
	}
	return gw, nil
}

func buildKV(cfg *config.Config) (checkpoint.KV, error) {
	switch cfg.Checkpoint.Backend {
	case "memory":
		return checkpoint.NewMemoryKV(), nil
	case "postgres":
		return checkpoint.NewPostgresKV(cfg.Checkpoint.PostgresDSN)
	case "s3":
		s3 := cfg.Checkpoint.S3
		return checkpoint.NewS3KV(checkpoint.S3Config{
			Endpoint: s3.Endpoint, Region: s3.Region,
			AccessKey: s3.AccessKey, SecretKey: s3.SecretKey,
			Bucket: s3.Bucket, UseSSL: s3.UseSSL,
		})
	default:
		return checkpoint.NewFileKV(cfg.Checkpoint.Dir)
	}
}
