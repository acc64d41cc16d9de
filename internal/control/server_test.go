package control

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adasa/adasa/internal/lifecycle"
	"github.com/adasa/adasa/internal/process"
	"github.com/adasa/adasa/internal/registry"
)

type fakeLoader struct {
	cfgs []process.Config
	err  error
}

func (f fakeLoader) LoadFile(path string) ([]process.Config, error) { return f.cfgs, f.err }

func testScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "run.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nsleep 5\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	reg := registry.New()
	engine := lifecycle.New(reg, t.TempDir(), nil)
	srv := NewServer(reg, engine, nil, t.TempDir(), nil)

	sockPath := filepath.Join(t.TempDir(), "adasa.sock")
	if err := srv.Listen(sockPath); err != nil {
		t.Fatal(err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv, sockPath
}

func roundTrip(t *testing.T, sockPath string, id uint64, command string, payload any) Response {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := map[string]any{
		"id":      id,
		"command": map[string]json.RawMessage{command: raw},
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestStartStopRoundTrip(t *testing.T) {
	_, sockPath := startServer(t)

	resp := roundTrip(t, sockPath, 1, "Start", StartParams{Script: testScript(t), Name: "svc", Instances: 1})
	if resp.ID != 1 || resp.Result.Err != "" {
		t.Fatalf("unexpected start response: %+v", resp)
	}

	listResp := roundTrip(t, sockPath, 2, "List", struct{}{})
	if listResp.Result.Err != "" {
		t.Fatalf("unexpected list error: %s", listResp.Result.Err)
	}

	stopResp := roundTrip(t, sockPath, 3, "Stop", StopParams{ID: 1, Force: true})
	if stopResp.Result.Err != "" {
		t.Fatalf("unexpected stop error: %s", stopResp.Result.Err)
	}
}

func TestUnknownIDReturnsErr(t *testing.T) {
	_, sockPath := startServer(t)
	resp := roundTrip(t, sockPath, 9, "Stop", StopParams{ID: 999})
	if resp.Result.Err == "" {
		t.Fatal("expected an error for unknown id")
	}
}

func TestResponseIDEchoesRequestID(t *testing.T) {
	_, sockPath := startServer(t)
	resp := roundTrip(t, sockPath, 42, "List", struct{}{})
	if resp.ID != 42 {
		t.Fatalf("expected response id 42, got %d", resp.ID)
	}
}

func TestReloadConfigDefaultSkipsExisting(t *testing.T) {
	reg := registry.New()
	engine := lifecycle.New(reg, t.TempDir(), nil)
	script := testScript(t)
	cfg := process.Config{Name: "svc", Script: script}.WithDefaults()
	if _, err := engine.Spawn(cfg); err != nil {
		t.Fatal(err)
	}

	changed := cfg
	changed.StopTimeoutSecs = 30
	srv := NewServer(reg, engine, fakeLoader{cfgs: []process.Config{changed}}, t.TempDir(), nil)

	result, err := srv.handleConfigReload(ConfigPathParams{Path: "ignored.toml"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Spawned != 0 {
		t.Fatalf("expected no spawns for an already-registered name, got %+v", result)
	}
	entry, err := reg.GetByName("svc")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Config.StopTimeoutSecs == 30 {
		t.Fatal("default ReloadConfig must not apply config drift")
	}
}

func TestReloadConfigApplyDiffRestartsChanged(t *testing.T) {
	reg := registry.New()
	engine := lifecycle.New(reg, t.TempDir(), nil)
	script := testScript(t)
	cfg := process.Config{Name: "svc", Script: script}.WithDefaults()
	id, err := engine.Spawn(cfg)
	if err != nil {
		t.Fatal(err)
	}

	changed := cfg
	changed.StopTimeoutSecs = 30
	srv := NewServer(reg, engine, fakeLoader{cfgs: []process.Config{changed}}, t.TempDir(), nil)

	result, err := srv.handleConfigReload(ConfigPathParams{Path: "ignored.toml", ApplyDiff: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Spawned != 1 {
		t.Fatalf("expected one reconfigure, got %+v", result)
	}
	entry, err := reg.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Config.StopTimeoutSecs != 30 {
		t.Fatalf("expected updated config to be applied, got %+v", entry.Config)
	}
}

func TestSocketPermissionsOwnerOnly(t *testing.T) {
	_, sockPath := startServer(t)
	fi, err := os.Stat(sockPath)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", fi.Mode().Perm())
	}
}
