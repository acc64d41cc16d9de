// Command adasa-daemon is the supervisor process itself: it wires the
// Registry, Lifecycle Engine, Supervisor Loop, Monitor/Limit Enforcer,
// Control Server and Persistence together, following the PID-file and
// snapshot-restore contracts of spec section 6.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/adasa/adasa/internal/config"
	"github.com/adasa/adasa/internal/control"
	"github.com/adasa/adasa/internal/history"
	"github.com/adasa/adasa/internal/lifecycle"
	"github.com/adasa/adasa/internal/logging"
	"github.com/adasa/adasa/internal/persist"
	"github.com/adasa/adasa/internal/process"
	"github.com/adasa/adasa/internal/registry"
	"github.com/adasa/adasa/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to supervisor config (toml/json/yaml)")
	flag.Parse()

	cfg, err := config.LoadSupervisor(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "adasa-daemon:", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel})

	if err := writePIDFile(cfg.PIDFile); err != nil {
		log.Error("could not acquire pid file", "path", cfg.PIDFile, "error", err)
		os.Exit(1)
	}
	defer os.Remove(cfg.PIDFile)

	reg := registry.New()
	engine := lifecycle.New(reg, cfg.LogDir, log)

	var hist *history.Sink
	if cfg.HistoryDBPath != "" {
		hist, err = history.Open(cfg.HistoryDBPath)
		if err != nil {
			log.Warn("history sink unavailable, continuing without it", "error", err)
		} else {
			defer hist.Close()
			engine.WithHistory(hist)
		}
	}

	restoreSnapshot(cfg.SnapshotPath, reg, engine, log)
	loadProgramDir(cfg.ProgramDir, engine, log)

	loop := supervisor.NewLoop(reg, engine, supervisor.DefaultInterval, log)
	mon := supervisor.NewMonitor(reg, engine, supervisor.DefaultMonitorInterval, log)
	if hist != nil {
		loop.WithHistory(hist)
		mon.WithHistory(hist)
	}

	srv := control.NewServer(reg, engine, config.NewLoader(), cfg.LogDir, log)
	if err := srv.Listen(cfg.SocketPath); err != nil {
		log.Error("could not bind control socket", "path", cfg.SocketPath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	go mon.Run(ctx)
	go func() {
		if err := srv.Serve(); err != nil {
			log.Info("control server stopped", "error", err)
		}
	}()

	log.Info("adasa-daemon started", "socket", cfg.SocketPath, "pid", os.Getpid())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
	_ = srv.Close()
	engine.StopAll()
	if err := persist.Write(cfg.SnapshotPath, reg); err != nil {
		log.Error("snapshot write failed", "error", err)
	}
}

func writePIDFile(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		if pid, perr := strconv.Atoi(string(data)); perr == nil {
			if err := syscall.Kill(pid, 0); err == nil {
				return fmt.Errorf("pid file %s: supervisor already running as pid %d", path, pid)
			}
		}
		// Stale pid file (process not alive): overwrite it.
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// loadProgramDir scans dir (if configured) for .toml/.json program files and
// spawns each one, the directory-of-programs startup shape of spec section
// 6. A file that fails to parse or spawn is logged and skipped; it does not
// abort the daemon's startup.
func loadProgramDir(dir string, engine *lifecycle.Engine, log *slog.Logger) {
	if dir == "" {
		return
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("program dir unreadable, skipping", "dir", dir, "error", err)
		return
	}
	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	loader := config.NewLoader()
	for _, name := range config.ScanProgramDir(names) {
		path := filepath.Join(dir, name)
		cfgs, err := loader.LoadFile(path)
		if err != nil {
			log.Error("program file load failed", "path", path, "error", err)
			continue
		}
		for _, c := range cfgs {
			if _, _, err := engine.SpawnReplicas(c); err != nil {
				log.Error("program file spawn failed", "path", path, "name", c.Name, "error", err)
			}
		}
	}
}

// restoreSnapshot loads the snapshot file if present and respawns every
// persisted entry under its original ProcessId with a fresh pid (spec
// section 4.7). Failure to load or restore is logged, not fatal: a fresh
// Registry is a valid starting state.
func restoreSnapshot(path string, reg *registry.Registry, engine *lifecycle.Engine, log *slog.Logger) {
	snap, err := persist.Load(path)
	if err != nil {
		log.Error("snapshot load failed, starting with an empty registry", "error", err)
		return
	}
	if snap == nil {
		return
	}
	restored, err := persist.Restore(snap, reg, func(id registry.ID, cfg process.Config) error {
		return engine.Attach(id, cfg)
	})
	if err != nil {
		log.Warn("snapshot restore had errors", "restored", restored, "error", err)
	} else {
		log.Info("snapshot restored", "count", restored)
	}
}
