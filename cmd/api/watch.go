package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	watchWSWriteWait = 10 * time.Second
	watchWSPongWait  = 60 * time.Second
	watchWSPingEvery = (watchWSPongWait * 9) / 10
)

var watchWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchWSOutbound struct {
	Type       string `json:"type"`
	RunID      string `json:"runId,omitempty"`
	Stage      string `json:"stage,omitempty"`
	StageIndex int    `json:"stageIndex,omitempty"`
	Artifact   string `json:"artifact,omitempty"`
	Cycle      int    `json:"cycle,omitempty"`
	Approved   bool   `json:"approved,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
}

// handleWatchWS streams a run's progress events over a websocket. The full
// event history is replayed on subscribe, so late watchers see the whole run.
func (reg *runRegistry) handleWatchWS(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}
	state, ok := reg.get(runID)
	if !ok {
		http.Error(w, "unknown run "+runID, http.StatusNotFound)
		return
	}

	conn, err := watchWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(watchWSPongWait)); err != nil {
		log.Printf("watch ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchWSPongWait))
	})

	writeCh := make(chan watchWSOutbound, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(watchWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	events, unsubscribe := state.subscribe()
	defer unsubscribe()

	pushWatchWS(writeCh, watchWSOutbound{Type: "subscribed", RunID: runID})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				pushWatchWS(writeCh, watchWSOutbound{
					Type:       string(ev.Type),
					RunID:      ev.RunID,
					Stage:      ev.Stage,
					StageIndex: ev.StageIndex,
					Artifact:   string(ev.Artifact),
					Cycle:      ev.Cycle,
					Approved:   ev.Approved,
					Message:    ev.Message,
				})
			}
		}
	}()

	// Reader loop: only pings and pongs are expected from watchers.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			<-writerDone
			return
		}
	}
}

func pushWatchWS(writeCh chan watchWSOutbound, out watchWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
