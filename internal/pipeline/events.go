package pipeline

import (
	"time"

	"draftforge/internal/artifact"
)

type EventType string

const (
	EventStageStart             EventType = "stage_start"
	EventStageComplete          EventType = "stage_complete"
	EventArtifactStart          EventType = "artifact_start"
	EventArtifactComplete       EventType = "artifact_complete"
	EventCycle                  EventType = "cycle"
	EventClarificationRequested EventType = "clarification_requested"
	EventError                  EventType = "error"

	// Emitted by run owners (CLI, API server) around Driver.Run, not by the
	// driver itself.
	EventRunComplete EventType = "run_complete"
	EventRunFailed   EventType = "run_failed"
)

// Event is one progress notification. Fields beyond Type are filled where
// they apply.
type Event struct {
	Type       EventType     `json:"type"`
	RunID      string        `json:"run_id"`
	Stage      string        `json:"stage,omitempty"`
	StageIndex int           `json:"stage_index"`
	Artifact   artifact.Type `json:"artifact,omitempty"`
	Cycle      int           `json:"cycle,omitempty"`
	Approved   bool          `json:"approved,omitempty"`
	Message    string        `json:"message,omitempty"`
	At         time.Time     `json:"at"`
}

// Emitter receives progress events. Emit must not block the run; slow
// consumers drop events rather than stall generation.
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ev Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}

// NopEmitter discards all events.
func NopEmitter() Emitter { return nopEmitter{} }

// ChannelEmitter fans events into a buffered channel for watchers. When the
// buffer is full the event is dropped; progress display is best effort.
type ChannelEmitter struct {
	ch chan Event
}

func NewChannelEmitter(buffer int) *ChannelEmitter {
	if buffer < 1 {
		buffer = 64
	}
	return &ChannelEmitter{ch: make(chan Event, buffer)}
}

func (e *ChannelEmitter) Emit(ev Event) {
	select {
	case e.ch <- ev:
	default:
	}
}

// Events exposes the receive side for a watcher loop.
func (e *ChannelEmitter) Events() <-chan Event { return e.ch }

// Close ends the stream. Only call after the run has finished emitting.
func (e *ChannelEmitter) Close() { close(e.ch) }
