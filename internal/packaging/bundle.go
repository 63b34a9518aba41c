// Package packaging renders a finished run into a downloadable zip bundle.
package packaging

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"draftforge/internal/artifact"
)

type manifest struct {
	RunName   string        `json:"run_name"`
	CreatedAt time.Time     `json:"created_at"`
	Documents []manifestDoc `json:"documents"`
}

type manifestDoc struct {
	File     string        `json:"file"`
	Type     artifact.Type `json:"type"`
	Approved bool          `json:"approved"`
	Cycles   int           `json:"cycles"`
}

// Bundle writes the artifacts into a zip, one markdown file per document in
// production order, plus a manifest.json describing the set.
func Bundle(runName string, arts []artifact.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	man := manifest{RunName: runName, CreatedAt: time.Now().UTC()}
	for i, a := range arts {
		name := fmt.Sprintf("%02d_%s.md", i+1, a.Type)
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("packaging: create %s: %w", name, err)
		}
		if _, err := w.Write([]byte(a.Content)); err != nil {
			return nil, fmt.Errorf("packaging: write %s: %w", name, err)
		}
		man.Documents = append(man.Documents, manifestDoc{
			File: name, Type: a.Type, Approved: a.Approved, Cycles: a.Version,
		})
	}

	mw, err := zw.Create("manifest.json")
	if err != nil {
		return nil, fmt.Errorf("packaging: create manifest: %w", err)
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(man); err != nil {
		return nil, fmt.Errorf("packaging: write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("packaging: close zip: %w", err)
	}
	return buf.Bytes(), nil
}
