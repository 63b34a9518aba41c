// Command draftforge runs the document pipeline from a terminal: one goal in,
// a zip of planning documents out. Interrupted runs resume with -resume.
package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"draftforge/internal/checkpoint"
	"draftforge/internal/config"
	"draftforge/internal/llm"
	llmclient "draftforge/internal/llmClient"
	"draftforge/internal/packaging"
	"draftforge/internal/pipeline"
	"draftforge/internal/runname"
)

func main() {
	goal := flag.String("goal", "", "what the documents should plan for")
	runID := flag.String("run", "", "run id (generated when empty)")
	resume := flag.Bool("resume", false, "resume the run id from its checkpoint")
	out := flag.String("out", "", "output zip path (defaults to <run-name>.zip)")
	generator := flag.String("generator", "", "generator model (overrides env)")
	reviewer := flag.String("reviewer", "", "reviewer model (overrides env)")
	cycles := flag.Int("cycles", 0, "max feedback cycles per document (overrides env)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *generator != "" {
		cfg.GeneratorModel = *generator
	}
	if *reviewer != "" {
		cfg.ReviewerModel = *reviewer
	}
	if *cycles > 0 {
		cfg.MaxCycles = *cycles
	}

	if *resume && *runID == "" {
		log.Fatal("-resume requires -run")
	}
	if !*resume && strings.TrimSpace(*goal) == "" {
		log.Fatal("-goal is required")
	}
	id := *runID
	if id == "" {
		id = newRunID()
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := buildGateway(ctx, cfg)
	if err != nil {
		log.Fatalf("init providers: %v", err)
	}
	defer gw.Close()

	kv, err := buildKV(cfg)
	if err != nil {
		log.Fatalf("init checkpoint store: %v", err)
	}

	driver := &pipeline.Driver{
		Gateway:     gw,
		Checkpoints: checkpoint.NewStore(kv, id),
		Clarifier:   stdinClarifier{},
		Emitter:     pipeline.EmitterFunc(printEvent),
	}

	runCfg := pipeline.RunConfig{
		RunID:          id,
		RunName:        runname.FromGoal(*goal),
		Goal:           strings.TrimSpace(*goal),
		GeneratorModel: cfg.GeneratorModel,
		ReviewerModel:  cfg.ReviewerModel,
		MaxCycles:      cfg.MaxCycles,
	}

	outcome := driver.Run(ctx, runCfg)
	if outcome.Err != nil {
		log.Printf("run %s failed: %v", id, outcome.Err)
		if outcome.Resumable {
			log.Printf("progress is checkpointed; rerun with -run %s -resume", id)
		}
		os.Exit(1)
	}

	name := runCfg.RunName
	if strings.TrimSpace(*goal) == "" {
		// Resumed without the original goal text on the command line.
		name = "run-" + id
	}
	data, err := packaging.Bundle(name, outcome.Artifacts)
	if err != nil {
		log.Fatalf("bundle: %v", err)
	}
	path := *out
	if path == "" {
		path = name + ".zip"
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
	log.Printf("run %s complete: %d documents in %s", id, len(outcome.Artifacts), path)
}

func newRunID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		log.Fatalf("generate run id: %v", err)
	}
	return hex.EncodeToString(b[:])
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

// stdinClarifier puts the stage question to the terminal and blocks for one
// line of input.
type stdinClarifier struct{}

func (stdinClarifier) Await(ctx context.Context, _ string, question string) (string, error) {
	fmt.Fprintf(os.Stderr, "\n%s\n> ", question)
	type lineResult struct {
		text string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		if sc.Scan() {
			ch <- lineResult{text: strings.TrimSpace(sc.Text())}
			return
		}
		ch <- lineResult{err: sc.Err()}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			return "", res.err
		}
		return res.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func printEvent(ev pipeline.Event) {
	switch ev.Type {
	case pipeline.EventStageStart:
		log.Printf("stage %d (%s) started", ev.StageIndex, ev.Stage)
	case pipeline.EventStageComplete:
		log.Printf("stage %d (%s) complete", ev.StageIndex, ev.Stage)
	case pipeline.EventArtifactStart:
		log.Printf("  drafting %s", ev.Artifact)
	case pipeline.EventCycle:
		log.Printf("  %s cycle %d", ev.Artifact, ev.Cycle)
	case pipeline.EventArtifactComplete:
		status := "approved"
		if !ev.Approved {
			status = "best effort"
		}
		log.Printf("  %s finalized after %d cycle(s), %s", ev.Artifact, ev.Cycle, status)
	case pipeline.EventClarificationRequested:
		log.Printf("waiting for input: %s", ev.Message)
	case pipeline.EventError:
		log.Printf("error: %s", ev.Message)
	}
}
