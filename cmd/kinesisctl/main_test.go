package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kinesis/internal/morphology"
	kinesisapi "kinesis/pkg/kinesis"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeBipedFile(t *testing.T) string {
	t.Helper()
	payload, err := morphology.EncodeDocument(kinesisapi.BipedDocument())
	if err != nil {
		t.Fatalf("encode biped: %v", err)
	}
	path := filepath.Join(t.TempDir(), "biped.json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write biped: %v", err)
	}
	return path
}

func TestValidateCommandAcceptsBiped(t *testing.T) {
	out, err := execute(t, "validate", writeBipedFile(t))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "biped: ok") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestValidateCommandRejectsBrokenDocument(t *testing.T) {
	doc := kinesisapi.BipedDocument()
	doc.Joints[2].Parent = "missing"
	payload, err := morphology.EncodeDocument(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := execute(t, "validate", path); err == nil {
		t.Fatal("broken document accepted")
	}
}

func TestScenariosCommandListsBuiltins(t *testing.T) {
	out, err := execute(t, "scenarios")
	if err != nil {
		t.Fatalf("scenarios: %v", err)
	}
	if !strings.Contains(out, "biped-balance") || !strings.Contains(out, "contact-loss") {
		t.Fatalf("missing built-in scenarios: %q", out)
	}
}

func TestRunCommandRejectsUnknownScenario(t *testing.T) {
	if _, err := execute(t, "run", "moonwalk", "--store", "memory"); err == nil {
		t.Fatal("unknown scenario accepted")
	}
}

func TestRunCommandRecordsWithMemoryStore(t *testing.T) {
	out, err := execute(t, "run", "contact-loss", "--store", "memory")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "scenario  contact-loss") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "ticks     200") {
		t.Fatalf("tick count missing: %q", out)
	}
}
