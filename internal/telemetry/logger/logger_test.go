package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info("device seen", "device_id", "dev-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "device seen" {
		t.Fatalf("msg = %v", entry["msg"])
	}
	if entry["device_id"] != "dev-1" {
		t.Fatalf("device_id = %v", entry["device_id"])
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info", Format: "text", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("text output = %q", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug logged at info level: %q", buf.String())
	}

	SetLevel("debug")
	defer SetLevel("info")

	log.Debug("visible")
	if buf.Len() == 0 {
		t.Fatal("debug not logged after SetLevel")
	}
	if GetLevel() != "debug" {
		t.Fatalf("GetLevel = %q", GetLevel())
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	log.With("collection_id", "col-1").Info("sync started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["collection_id"] != "col-1" {
		t.Fatalf("collection_id = %v", entry["collection_id"])
	}
}
