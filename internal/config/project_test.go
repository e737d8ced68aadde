package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProject_Missing(t *testing.T) {
	pc, err := LoadProject(t.TempDir())
	if err != nil {
		t.Fatalf("missing project config should not error: %v", err)
	}
	if pc != nil {
		t.Fatal("expected nil config for a tree without wam.yml")
	}
}

func TestLoadProject_Full(t *testing.T) {
	dir := t.TempDir()
	yml := `type: nodejs
port: 4000
build_command: npm run build
start_command: node server.js
health_check: /healthz
env:
  NODE_ENV: production
  API_KEY: secret
`
	if err := os.WriteFile(filepath.Join(dir, "wam.yml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	pc, err := LoadProject(dir)
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	if pc.Type != "nodejs" {
		t.Errorf("Expected type nodejs, got %s", pc.Type)
	}
	if pc.Port != 4000 {
		t.Errorf("Expected port 4000, got %d", pc.Port)
	}
	if pc.StartCommand != "node server.js" {
		t.Errorf("Expected start command, got %s", pc.StartCommand)
	}
	if pc.Env["NODE_ENV"] != "production" {
		t.Errorf("Expected env NODE_ENV=production, got %s", pc.Env["NODE_ENV"])
	}
}

func TestLoadProject_YamlExtension(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "wam.yaml"), []byte("port: 5000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pc, err := LoadProject(dir)
	if err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	if pc.Port != 5000 {
		t.Errorf("Expected port 5000, got %d", pc.Port)
	}
}

func TestLoadProject_Malformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "wam.yml"), []byte(":\tnot yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProject(dir); err == nil {
		t.Fatal("malformed wam.yml must be an error, not silently ignored")
	}
}

func TestLoadProject_PortOutOfRange(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "wam.yml"), []byte("port: 99999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProject(dir); err == nil {
		t.Fatal("out-of-range port must be rejected")
	}
}
