package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"draftforge/internal/artifact"
	"draftforge/internal/checkpoint"
	"draftforge/internal/config"
	"draftforge/internal/llm"
	"draftforge/internal/packaging"
	"draftforge/internal/pipeline"
	"draftforge/internal/runname"
)

const (
	statusRunning      = "running"
	statusWaitingInput = "waiting_input"
	statusCompleted    = "completed"
	statusFailed       = "failed"
)

const recentRunsCapacity = 128

// runState is the live view of one run: its config, progress events, and the
// watchers subscribed to them.
type runState struct {
	mu        sync.Mutex
	cfg       pipeline.RunConfig
	status    string
	errText   string
	events    []pipeline.Event
	subs      map[chan pipeline.Event]struct{}
	artifacts []artifact.Artifact
	bundleKey string
}

func newRunState(cfg pipeline.RunConfig) *runState {
	return &runState{
		cfg:    cfg,
		status: statusRunning,
		subs:   make(map[chan pipeline.Event]struct{}),
	}
}

func (s *runState) emit(ev pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Type {
	case pipeline.EventClarificationRequested:
		s.status = statusWaitingInput
	case pipeline.EventArtifactStart, pipeline.EventStageStart:
		if s.status == statusWaitingInput {
			s.status = statusRunning
		}
	}
	s.events = append(s.events, ev)
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// subscribe replays the run's history and then streams new events. The
// returned cancel must be called when the watcher goes away.
func (s *runState) subscribe() (<-chan pipeline.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan pipeline.Event, 64+len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	s.subs[ch] = struct{}{}
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, ch)
	}
}

func (s *runState) finish(out pipeline.Outcome) {
	s.mu.Lock()
	s.artifacts = out.Artifacts
	if out.Completed {
		s.status = statusCompleted
	} else {
		s.status = statusFailed
		if out.Err != nil {
			s.errText = out.Err.Error()
		}
	}
	s.mu.Unlock()
}

// runSummary is what survives in the recent-runs cache after a run ends.
type runSummary struct {
	RunID      string    `json:"run_id"`
	RunName    string    `json:"run_name"`
	Goal       string    `json:"goal"`
	Status     string    `json:"status"`
	Documents  int       `json:"documents"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// runRegistry owns every live run plus a bounded cache of finished ones.
type runRegistry struct {
	mu     sync.Mutex
	live   map[string]*runState
	recent *lru.Cache[string, runSummary]

	cfg       *config.Config
	gateway   *llm.Gateway
	kv        checkpoint.KV
	clarifier *pipeline.ChannelClarifier
	uploader  *packaging.Uploader
}

func newRunRegistry(cfg *config.Config, gw *llm.Gateway, kv checkpoint.KV, up *packaging.Uploader) (*runRegistry, error) {
	reg := &runRegistry{
		live:      make(map[string]*runState),
		cfg:       cfg,
		gateway:   gw,
		kv:        kv,
		clarifier: pipeline.NewChannelClarifier(),
		uploader:  up,
	}
	// Finished runs stay addressable (status, bundle download) until the
	// recent cache evicts them.
	recent, err := lru.NewWithEvict[string, runSummary](recentRunsCapacity,
		func(key string, _ runSummary) {
			reg.mu.Lock()
			delete(reg.live, key)
			reg.mu.Unlock()
		})
	if err != nil {
		return nil, err
	}
	reg.recent = recent
	return reg, nil
}

func (reg *runRegistry) get(runID string) (*runState, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	s, ok := reg.live[runID]
	return s, ok
}

// start launches a run goroutine. Resume reuses the run id; the driver picks
// the rest up from the checkpoint.
func (reg *runRegistry) start(cfg pipeline.RunConfig) (*runState, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if existing, ok := reg.live[cfg.RunID]; ok {
		existing.mu.Lock()
		active := existing.status == statusRunning || existing.status == statusWaitingInput
		existing.mu.Unlock()
		if active {
			return nil, fmt.Errorf("run %s is already active", cfg.RunID)
		}
	}
	state := newRunState(cfg)
	reg.live[cfg.RunID] = state

	go reg.execute(state)
	return state, nil
}

func (reg *runRegistry) execute(state *runState) {
	driver := &pipeline.Driver{
		Gateway:     reg.gateway,
		Checkpoints: checkpoint.NewStore(reg.kv, state.cfg.RunID),
		Clarifier:   reg.clarifier,
		Emitter:     pipeline.EmitterFunc(state.emit),
	}

	out := driver.Run(context.Background(), state.cfg)
	state.finish(out)

	final := pipeline.Event{Type: pipeline.EventRunComplete, RunID: state.cfg.RunID}
	if !out.Completed {
		final.Type = pipeline.EventRunFailed
		if out.Err != nil {
			final.Message = out.Err.Error()
		}
	}
	state.emit(final)

	if out.Completed && reg.uploader != nil {
		data, err := packaging.Bundle(state.cfg.RunName, out.Artifacts)
		if err == nil {
			key, upErr := reg.uploader.Upload(context.Background(),
				state.cfg.RunID, state.cfg.RunName, data)
			if upErr != nil {
				log.Printf("run %s: bundle upload: %v", state.cfg.RunID, upErr)
			} else {
				state.mu.Lock()
				state.bundleKey = key
				state.mu.Unlock()
			}
		}
	}

	reg.retire(state)
}

// retire records a finished run in the recent cache. The live entry is kept
// until eviction so that status and bundle downloads keep working for a
// while after completion.
func (reg *runRegistry) retire(state *runState) {
	state.mu.Lock()
	summary := runSummary{
		RunID:      state.cfg.RunID,
		RunName:    state.cfg.RunName,
		Goal:       state.cfg.Goal,
		Status:     state.status,
		Documents:  len(state.artifacts),
		Error:      state.errText,
		FinishedAt: time.Now().UTC(),
	}
	state.mu.Unlock()
	reg.recent.Add(summary.RunID, summary)
}

func newRunID() (string, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// --- HTTP handlers ---

func (reg *runRegistry) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		Goal           string `json:"goal"`
		GeneratorModel string `json:"generator_model"`
		ReviewerModel  string `json:"reviewer_model"`
		MaxCycles      int    `json:"max_cycles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	goal := strings.TrimSpace(in.Goal)
	if goal == "" {
		http.Error(w, "goal is required", http.StatusBadRequest)
		return
	}
	id, err := newRunID()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	cfg := pipeline.RunConfig{
		RunID:          id,
		RunName:        runname.FromGoal(goal),
		Goal:           goal,
		GeneratorModel: firstNonEmpty(in.GeneratorModel, reg.cfg.GeneratorModel),
		ReviewerModel:  firstNonEmpty(in.ReviewerModel, reg.cfg.ReviewerModel),
		MaxCycles:      in.MaxCycles,
	}
	if cfg.MaxCycles < 1 {
		cfg.MaxCycles = reg.cfg.MaxCycles
	}
	if _, err := reg.start(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{
		"run_id":   id,
		"run_name": cfg.RunName,
		"status":   statusRunning,
	})
}

func (reg *runRegistry) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}
	snap, ok, err := checkpoint.NewStore(reg.kv, runID).Load(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no checkpoint for run "+runID, http.StatusNotFound)
		return
	}
	cfg := pipeline.RunConfig{
		RunID:          runID,
		RunName:        snap.RunName,
		Goal:           snap.Goal,
		GeneratorModel: firstNonEmpty(snap.GeneratorModel, reg.cfg.GeneratorModel),
		ReviewerModel:  firstNonEmpty(snap.ReviewerModel, reg.cfg.ReviewerModel),
		MaxCycles:      snap.MaxCycles,
	}
	if _, err := reg.start(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{
		"run_id":      runID,
		"run_name":    cfg.RunName,
		"status":      statusRunning,
		"stage_index": snap.StageIndex,
		"restored":    len(snap.Artifacts),
	})
}

func (reg *runRegistry) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}
	if state, ok := reg.get(runID); ok {
		state.mu.Lock()
		resp := map[string]any{
			"run_id":    runID,
			"run_name":  state.cfg.RunName,
			"status":    state.status,
			"documents": len(state.artifacts),
		}
		if state.errText != "" {
			resp["error"] = state.errText
		}
		if state.bundleKey != "" {
			resp["bundle_key"] = state.bundleKey
		}
		state.mu.Unlock()
		writeJSON(w, resp)
		return
	}
	if summary, ok := reg.recent.Get(runID); ok {
		writeJSON(w, summary)
		return
	}
	http.Error(w, "unknown run "+runID, http.StatusNotFound)
}

func (reg *runRegistry) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	keys := reg.recent.Keys()
	out := make([]runSummary, 0, len(keys))
	for _, k := range keys {
		if s, ok := reg.recent.Get(k); ok {
			out = append(out, s)
		}
	}
	writeJSON(w, map[string]any{"runs": out})
}

func (reg *runRegistry) handleClarify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		RunID  string `json:"run_id"`
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	runID := strings.TrimSpace(in.RunID)
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}
	if err := reg.clarifier.Submit(runID, strings.TrimSpace(in.Answer)); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (reg *runRegistry) handleBundle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}
	state, ok := reg.get(runID)
	if !ok {
		http.Error(w, "unknown or expired run "+runID, http.StatusNotFound)
		return
	}
	state.mu.Lock()
	status := state.status
	name := state.cfg.RunName
	arts := state.artifacts
	state.mu.Unlock()
	if status != statusCompleted {
		http.Error(w, "run is not completed", http.StatusConflict)
		return
	}
	data, err := packaging.Bundle(name, arts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", name+".zip"))
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
