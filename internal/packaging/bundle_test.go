package packaging

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"draftforge/internal/artifact"
	"draftforge/internal/tester"
)

func TestBundleLayout(t *testing.T) {
	arts := []artifact.Artifact{
		{Type: artifact.TypeBrief, Content: "# Brief\n", Version: 1, Approved: true},
		{Type: artifact.TypeProductSpec, Content: "# Spec\n", Version: 3, Approved: false},
	}
	data, err := Bundle("birdwatch", arts)
	tester.NoErr(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	tester.NoErr(t, err)
	tester.Eq(t, 3, len(zr.File))
	tester.Eq(t, "01_brief.md", zr.File[0].Name)
	tester.Eq(t, "02_product_spec.md", zr.File[1].Name)
	tester.Eq(t, "manifest.json", zr.File[2].Name)

	rc, err := zr.File[0].Open()
	tester.NoErr(t, err)
	body, err := io.ReadAll(rc)
	tester.NoErr(t, err)
	_ = rc.Close()
	tester.Eq(t, "# Brief\n", string(body))

	mc, err := zr.File[2].Open()
	tester.NoErr(t, err)
	var man struct {
		RunName   string `json:"run_name"`
		Documents []struct {
			File     string `json:"file"`
			Type     string `json:"type"`
			Approved bool   `json:"approved"`
			Cycles   int    `json:"cycles"`
		} `json:"documents"`
	}
	tester.NoErr(t, json.NewDecoder(mc).Decode(&man))
	_ = mc.Close()
	tester.Eq(t, "birdwatch", man.RunName)
	tester.Eq(t, 2, len(man.Documents))
	tester.Eq(t, "brief", man.Documents[0].Type)
	tester.True(t, man.Documents[0].Approved)
	tester.Eq(t, 3, man.Documents[1].Cycles)
	tester.False(t, man.Documents[1].Approved)
}

func TestBundleEmptyRun(t *testing.T) {
	data, err := Bundle("empty", nil)
	tester.NoErr(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	tester.NoErr(t, err)
	tester.Eq(t, 1, len(zr.File))
	tester.Eq(t, "manifest.json", zr.File[0].Name)
}
