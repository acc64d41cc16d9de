package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/adasa/adasa/internal/adasaerr"
	"github.com/adasa/adasa/internal/lifecycle"
	"github.com/adasa/adasa/internal/logs"
	"github.com/adasa/adasa/internal/process"
	"github.com/adasa/adasa/internal/registry"
)

// ConfigLoader parses a TOML or JSON file (by extension) into validated
// ProcessConfigs, implemented by internal/config and injected here to avoid
// a control->config->control import cycle.
type ConfigLoader interface {
	LoadFile(path string) ([]process.Config, error)
}

// Server is the Control Server of spec section 4.6.
type Server struct {
	reg       *registry.Registry
	engine    *lifecycle.Engine
	cfgLoader ConfigLoader
	logDir    string
	startedAt time.Time
	log       *slog.Logger

	listener net.Listener
}

func NewServer(reg *registry.Registry, engine *lifecycle.Engine, cfgLoader ConfigLoader, logDir string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{reg: reg, engine: engine, cfgLoader: cfgLoader, logDir: logDir, startedAt: time.Now(), log: log}
}

// Listen binds the Unix domain socket at path, removing a stale socket file
// left by an unclean previous exit, and restricts it to owner read/write
// (spec section 6).
func (s *Server) Listen(path string) error {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("control: create socket dir: %w", err)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("control: listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = l.Close()
		return fmt.Errorf("control: chmod socket: %w", err)
	}
	s.listener = l
	return nil
}

// Serve accepts connections until the listener is closed (by Close).
// Every connection is handled in its own goroutine; effective command
// ordering is serialised by the Registry's exclusive lock, not by this
// loop (spec section 4.6).
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// handleConn reads exactly one newline-terminated request, dispatches it,
// writes exactly one newline-terminated response, and closes the
// connection (spec section 4.6).
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReaderSize(conn, 64*1024)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return
	}

	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		resp := errResp(0, adasaerr.New(adasaerr.Serialization, "malformed request: %v", err))
		s.write(conn, resp)
		return
	}

	resp := s.dispatch(req)
	s.write(conn, resp)
}

func (s *Server) write(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("control: failed to marshal response", "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		s.log.Warn("control: write response failed", "error", err)
	}
}

func (s *Server) dispatch(req Request) Response {
	name, payload, err := req.variant()
	if err != nil {
		return errResp(req.ID, err)
	}

	var result any
	switch name {
	case "Start":
		var p StartParams
		if err = json.Unmarshal(payload, &p); err == nil {
			result, err = s.handleStart(p)
		}
	case "Stop":
		var p StopParams
		if err = json.Unmarshal(payload, &p); err == nil {
			err = s.engine.Stop(registry.ID(p.ID), p.Force)
		}
	case "Restart":
		var p RestartParams
		if err = json.Unmarshal(payload, &p); err == nil {
			result, err = s.handleRestart(p)
		}
	case "Delete":
		var p DeleteParams
		if err = json.Unmarshal(payload, &p); err == nil {
			err = s.handleDelete(p)
		}
	case "List":
		result = s.handleList()
	case "Logs":
		var p LogsParams
		if err = json.Unmarshal(payload, &p); err == nil {
			result, err = s.handleLogs(p)
		}
	case "StartFromConfig":
		var p ConfigPathParams
		if err = json.Unmarshal(payload, &p); err == nil {
			result, err = s.handleConfigSpawn(p.Path)
		}
	case "ReloadConfig":
		var p ConfigPathParams
		if err = json.Unmarshal(payload, &p); err == nil {
			result, err = s.handleConfigReload(p)
		}
	case "Daemon":
		var p DaemonParams
		if err = json.Unmarshal(payload, &p); err == nil {
			result, err = s.handleDaemon(p)
		}
	default:
		err = unsupportedVariant(name)
	}

	if err != nil {
		return errResp(req.ID, err)
	}
	return ok(req.ID, result)
}

func (s *Server) handleStart(p StartParams) (StartResult, error) {
	cfg := process.Config{
		Name:      p.Name,
		Script:    p.Script,
		Args:      p.Args,
		Cwd:       p.Cwd,
		Env:       p.Env,
		Instances: p.Instances,
	}.WithDefaults()
	if cfg.Name == "" {
		cfg.Name = filepath.Base(p.Script)
	}
	first, count, err := s.engine.SpawnReplicas(cfg)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{ID: uint64(first), Count: count}, nil
}

// resolveTarget accepts a decimal id or an exact process name; a base name
// shared by several replicas is not matched.
func (s *Server) resolveTarget(target string) (*registry.Entry, error) {
	if id, err := strconv.ParseUint(target, 10, 64); err == nil {
		return s.reg.Get(registry.ID(id))
	}
	return s.reg.GetByName(target)
}

func (s *Server) handleRestart(p RestartParams) (any, error) {
	if p.Rolling {
		count, err := s.engine.RollingRestart(p.Target, 2*time.Second)
		if err != nil {
			return nil, err
		}
		return map[string]int{"restarted": count}, nil
	}
	entry, err := s.resolveTarget(p.Target)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Restart(entry.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleDelete(p DeleteParams) error {
	if id, err := strconv.ParseUint(p.Target, 10, 64); err == nil {
		rid := registry.ID(id)
		if _, err := s.reg.Get(rid); err != nil {
			return err
		}
		_ = s.engine.Stop(rid, true)
		s.reg.Remove(rid)
		return nil
	}
	replicas := s.reg.FindReplicas(p.Target)
	if len(replicas) == 0 {
		return adasaerr.New(adasaerr.NotFound, "no process named %q", p.Target)
	}
	for _, r := range replicas {
		_ = s.engine.Stop(r.ID, true)
		s.reg.Remove(r.ID)
	}
	return nil
}

func (s *Server) handleList() []ListEntry {
	entries := s.reg.List()
	out := make([]ListEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ListEntry{ID: uint64(e.ID), Name: e.Name, State: e.State.String(), Stats: e.Stats})
	}
	return out
}

func (s *Server) handleLogs(p LogsParams) (LogsResult, error) {
	entry, err := s.reg.Get(registry.ID(p.ID))
	if err != nil {
		return LogsResult{}, err
	}
	path := filepath.Join(s.logDir, fmt.Sprintf("%s-%d-%s.log", entry.Name, entry.ID, logs.Stdout))

	if p.Follow {
		// The socket contract permits exactly one response per connection,
		// so Follow cannot stream indefinitely; it waits one short grace
		// window for trailing output, then returns what is available.
		time.Sleep(200 * time.Millisecond)
	}

	lines, err := logs.TailPath(path, p.Lines)
	if err != nil {
		if os.IsNotExist(err) {
			return LogsResult{Lines: nil}, nil
		}
		return LogsResult{}, adasaerr.New(adasaerr.IpcError, "read log: %v", err)
	}
	total, err := logs.CountLines(path)
	truncated := err == nil && p.Lines > 0 && total > len(lines)
	return LogsResult{Lines: lines, Truncated: truncated}, nil
}

func (s *Server) handleConfigSpawn(path string) (ConfigResult, error) {
	if s.cfgLoader == nil {
		return ConfigResult{}, adasaerr.Sentinel(adasaerr.Unimplemented)
	}
	cfgs, err := s.cfgLoader.LoadFile(path)
	if err != nil {
		return ConfigResult{}, err
	}
	result := ConfigResult{}
	for _, cfg := range cfgs {
		if _, _, err := s.engine.SpawnReplicas(cfg); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Spawned++
	}
	return result, nil
}

// handleConfigReload implements Open Question 1's resolution: by default
// (ApplyDiff=false) it spawns only configs whose base name isn't already
// registered, leaving existing entries untouched. With ApplyDiff=true, any
// already-registered replica whose config now differs from the file is
// stopped and respawned under its existing ProcessId via Reconfigure.
func (s *Server) handleConfigReload(p ConfigPathParams) (ConfigResult, error) {
	if s.cfgLoader == nil {
		return ConfigResult{}, adasaerr.Sentinel(adasaerr.Unimplemented)
	}
	cfgs, err := s.cfgLoader.LoadFile(p.Path)
	if err != nil {
		return ConfigResult{}, err
	}

	result := ConfigResult{}
	for _, cfg := range cfgs {
		existing := s.reg.FindReplicas(cfg.Name)
		if len(existing) == 0 {
			if _, _, err := s.engine.SpawnReplicas(cfg); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.Spawned++
			continue
		}
		if !p.ApplyDiff {
			continue
		}
		for _, e := range existing {
			replica := cfg
			replica.Name = e.Name
			if configEqualIgnoringName(e.Config, replica) {
				continue
			}
			if err := s.engine.Reconfigure(e.ID, replica); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.Spawned++
		}
	}
	return result, nil
}

func configEqualIgnoringName(a, b process.Config) bool {
	a.Name, b.Name = "", ""
	return reflect.DeepEqual(a, b)
}

func (s *Server) handleDaemon(p DaemonParams) (any, error) {
	switch p.Action {
	case "status":
		return DaemonStatus{
			PID:          os.Getpid(),
			UptimeSecs:   int64(time.Since(s.startedAt).Seconds()),
			ProcessCount: len(s.reg.List()),
		}, nil
	case "start", "stop":
		// The daemon's own start/stop lifecycle is driven by cmd/adasa-daemon
		// and the PID file, not by a command arriving over its own socket.
		// Daemon{Start} and Daemon{Stop} are answered with an empty Ok and
		// have no effect; the daemon shuts down only on SIGINT/SIGTERM.
		return nil, nil
	default:
		return nil, adasaerr.New(adasaerr.ConfigInvalid, "unknown daemon action %q", p.Action)
	}
}
