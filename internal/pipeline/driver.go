package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"draftforge/internal/artifact"
	"draftforge/internal/checkpoint"
	"draftforge/internal/cycle"
	"draftforge/internal/llm"
	"draftforge/internal/prompt"
)

const defaultMaxCycles = 3

// RunConfig identifies one run and the knobs it was started with. Everything
// here survives in the checkpoint; credentials never appear.
type RunConfig struct {
	RunID   string
	RunName string
	Goal    string

	GeneratorModel string
	ReviewerModel  string
	MaxCycles      int
}

// Outcome is the terminal state of Run. A failed run keeps its checkpoint and
// reports Resumable=true together with whatever artifacts were finalized.
type Outcome struct {
	Completed bool
	Resumable bool
	Artifacts []artifact.Artifact
	Err       error
}

// Driver walks the stage plan, finalizing artifacts through the feedback
// engine and checkpointing after every durable step.
type Driver struct {
	Gateway     *llm.Gateway
	Prompts     prompt.Source
	Checkpoints *checkpoint.Store
	Clarifier   ClarificationWaiter
	Emitter     Emitter
	Stages      []Stage
}

// Run executes the plan from the beginning, or from the checkpoint when one
// exists for cfg.RunID. Finalized artifacts are never regenerated on resume.
func (d *Driver) Run(ctx context.Context, cfg RunConfig) Outcome {
	emit := d.Emitter
	if emit == nil {
		emit = NopEmitter()
	}
	stages := d.Stages
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	prompts := d.Prompts
	if prompts == nil {
		prompts = prompt.Defaults()
	}
	if cfg.MaxCycles < 1 {
		cfg.MaxCycles = defaultMaxCycles
	}

	rc := NewRunContext()
	startStage := 0
	if d.Checkpoints != nil {
		snap, ok, err := d.Checkpoints.Load(ctx)
		if err != nil {
			return Outcome{Err: fmt.Errorf("pipeline: load checkpoint: %w", err)}
		}
		if ok {
			restored, err := restore(snap.Artifacts, snap.Clarifications)
			if err != nil {
				return Outcome{Err: fmt.Errorf("pipeline: corrupt checkpoint: %w", err)}
			}
			rc = restored
			startStage = snap.StageIndex
			if snap.Goal != "" {
				cfg.Goal = snap.Goal
			}
			if snap.RunName != "" {
				cfg.RunName = snap.RunName
			}
			log.Printf("run %s: resuming at stage %d with %d artifacts",
				cfg.RunID, startStage, len(snap.Artifacts))
		}
	}

	// Both models must have a registered provider before any call is placed,
	// so a missing credential can never cause partial spend.
	if err := d.Gateway.Preflight(cfg.GeneratorModel, cfg.ReviewerModel); err != nil {
		emit.Emit(eventAt(Event{Type: EventError, RunID: cfg.RunID, Message: err.Error()}))
		return Outcome{Resumable: true, Artifacts: rc.Artifacts(), Err: err}
	}

	engine := cycle.New(d.Gateway, prompts, cfg.MaxCycles)

	for si := startStage; si < len(stages); si++ {
		stage := stages[si]
		emit.Emit(eventAt(Event{
			Type: EventStageStart, RunID: cfg.RunID, Stage: stage.Name, StageIndex: si,
		}))

		if err := d.save(ctx, cfg, rc, si, ""); err != nil {
			return Outcome{Resumable: true, Artifacts: rc.Artifacts(), Err: err}
		}

		if err := d.clarify(ctx, cfg, rc, stage, emit); err != nil {
			d.fail(ctx, cfg, rc, si, err)
			emit.Emit(eventAt(Event{Type: EventError, RunID: cfg.RunID, Stage: stage.Name,
				StageIndex: si, Message: err.Error()}))
			return Outcome{Resumable: true, Artifacts: rc.Artifacts(), Err: err}
		}

		for _, out := range stage.Outputs {
			if rc.Has(out) {
				continue
			}
			emit.Emit(eventAt(Event{Type: EventArtifactStart, RunID: cfg.RunID,
				Stage: stage.Name, StageIndex: si, Artifact: out}))

			clarification, _ := rc.Clarification(stage.Name)
			res, err := engine.Produce(ctx, cycle.Request{
				Type:           out,
				StageIndex:     si,
				Goal:           cfg.Goal,
				Clarification:  clarification,
				Siblings:       rc.Artifacts(),
				GeneratorModel: cfg.GeneratorModel,
				ReviewerModel:  cfg.ReviewerModel,
				OnCycle: func(c int) {
					emit.Emit(eventAt(Event{Type: EventCycle, RunID: cfg.RunID,
						Stage: stage.Name, StageIndex: si, Artifact: out, Cycle: c}))
				},
			})
			if err != nil {
				d.fail(ctx, cfg, rc, si, err)
				emit.Emit(eventAt(Event{Type: EventError, RunID: cfg.RunID, Stage: stage.Name,
					StageIndex: si, Artifact: out, Message: err.Error()}))
				return Outcome{Resumable: true, Artifacts: rc.Artifacts(), Err: err}
			}
			if !res.Approved {
				log.Printf("run %s: %s not approved after %d cycles, keeping best effort",
					cfg.RunID, out, res.CyclesUsed)
			}
			if err := rc.Put(res.Artifact); err != nil {
				return Outcome{Resumable: true, Artifacts: rc.Artifacts(), Err: err}
			}
			emit.Emit(eventAt(Event{Type: EventArtifactComplete, RunID: cfg.RunID,
				Stage: stage.Name, StageIndex: si, Artifact: out,
				Cycle: res.CyclesUsed, Approved: res.Approved}))

			if err := d.save(ctx, cfg, rc, si, ""); err != nil {
				return Outcome{Resumable: true, Artifacts: rc.Artifacts(), Err: err}
			}
		}

		emit.Emit(eventAt(Event{Type: EventStageComplete, RunID: cfg.RunID,
			Stage: stage.Name, StageIndex: si}))
		if err := d.save(ctx, cfg, rc, si+1, ""); err != nil {
			return Outcome{Resumable: true, Artifacts: rc.Artifacts(), Err: err}
		}
	}

	if d.Checkpoints != nil {
		if err := d.Checkpoints.Clear(ctx); err != nil {
			log.Printf("run %s: clear checkpoint: %v", cfg.RunID, err)
		}
	}
	return Outcome{Completed: true, Artifacts: rc.Artifacts()}
}

// clarify asks the stage's question once. An answer recorded in an earlier
// run is reused; resume never re-asks.
func (d *Driver) clarify(ctx context.Context, cfg RunConfig, rc *RunContext, stage Stage, emit Emitter) error {
	if stage.ClarifyPrompt == "" || d.Clarifier == nil {
		return nil
	}
	if _, answered := rc.Clarification(stage.Name); answered {
		return nil
	}
	emit.Emit(eventAt(Event{Type: EventClarificationRequested, RunID: cfg.RunID,
		Stage: stage.Name, StageIndex: stage.Index, Message: stage.ClarifyPrompt}))
	answer, err := d.Clarifier.Await(ctx, cfg.RunID, stage.ClarifyPrompt)
	if err != nil {
		return fmt.Errorf("pipeline: clarification for stage %s: %w", stage.Name, err)
	}
	rc.SetClarification(stage.Name, answer)
	return d.save(ctx, cfg, rc, stage.Index, "")
}

func (d *Driver) save(ctx context.Context, cfg RunConfig, rc *RunContext, stageIndex int, lastErr string) error {
	if d.Checkpoints == nil {
		return nil
	}
	return d.Checkpoints.Save(ctx, checkpoint.Snapshot{
		RunID:          cfg.RunID,
		RunName:        cfg.RunName,
		Goal:           cfg.Goal,
		GeneratorModel: cfg.GeneratorModel,
		ReviewerModel:  cfg.ReviewerModel,
		MaxCycles:      cfg.MaxCycles,
		StageIndex:     stageIndex,
		Artifacts:      rc.Artifacts(),
		Clarifications: rc.Clarifications(),
		LastError:      lastErr,
	})
}

func eventAt(ev Event) Event {
	ev.At = time.Now().UTC()
	return ev
}

// fail records the failure in the checkpoint so a later resume can report why
// the run stopped. The checkpoint itself is retained.
func (d *Driver) fail(ctx context.Context, cfg RunConfig, rc *RunContext, stageIndex int, cause error) {
	if err := d.save(ctx, cfg, rc, stageIndex, cause.Error()); err != nil {
		log.Printf("run %s: save failure checkpoint: %v", cfg.RunID, err)
	}
}
