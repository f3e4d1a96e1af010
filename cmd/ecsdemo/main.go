package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/ecscore/internal/config"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/data"
	"github.com/l1jgo/ecscore/internal/scripting"
	"github.com/l1jgo/ecscore/internal/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             ecscore demo v0.1.0           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Host loop ──────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/engine.toml"
	if p := os.Getenv("ECSCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner()

	// 3. Manifests
	printSection("Manifests")
	compTable, err := data.LoadComponentTable(cfg.Manifest.Components)
	if err != nil {
		return fmt.Errorf("component manifest: %w", err)
	}
	compTable.Apply(&cfg.World)
	printStat("component kinds", compTable.Count())

	sysTable, err := data.LoadSystemTable(cfg.Manifest.Systems)
	if err != nil {
		return fmt.Errorf("system manifest: %w", err)
	}
	regs, err := sysTable.Registrations(sim.Factories())
	if err != nil {
		return fmt.Errorf("system manifest: %w", err)
	}
	printStat("system registrations", sysTable.Count())
	fmt.Println()

	// 4. World
	printSection("World")
	w, err := ecs.NewWorld(cfg.World, log, regs)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	defer w.Dispose()
	if _, err := sim.RegisterKinds(w); err != nil {
		return fmt.Errorf("register components: %w", err)
	}
	printOK("update: " + strings.Join(w.UpdateOrder(), " → "))
	printOK("draw:   " + strings.Join(w.DrawOrder(), " → "))

	// 5. Script templates
	engine, err := scripting.NewEngine(cfg.Manifest.Templates, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	if err := engine.Install(w); err != nil {
		return fmt.Errorf("install templates: %w", err)
	}
	if err := sim.EnsureTemplates(w); err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	printStat("templates", len(w.Templates()))

	var reloads <-chan string
	if cfg.Manifest.WatchTemplates {
		watcher, err := scripting.NewWatcher(cfg.Manifest.Templates)
		if err != nil {
			log.Warn("template watcher disabled", zap.Error(err))
		} else {
			defer watcher.Close()
			reloads = watcher.Events
			printOK("watching " + cfg.Manifest.Templates)
		}
	}

	// 6. Initialize systems
	if err := w.Initialize(ecs.ServiceMap{
		sim.ServiceSpawnRate:  cfg.Host.SpawnRate,
		sim.ServiceStatsEvery: cfg.Host.StatsEvery,
		sim.ServiceSeed:       uint64(time.Now().UnixNano()),
	}); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	fmt.Println()

	// 7. Frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Host.FrameRate)
	defer ticker.Stop()

	printSection("Running")
	printReady(fmt.Sprintf("frame loop started (frame: %s)", cfg.Host.FrameRate))
	fmt.Println()

	start := time.Now()
	last := start
	frames := 0
	for {
		select {
		case now := <-ticker.C:
			ft := ecs.FrameTime{Elapsed: now.Sub(last), Total: now.Sub(start)}
			last = now
			w.Update(ft)
			w.Draw(ft)
			frames++
			if cfg.Host.MaxFrames > 0 && frames >= cfg.Host.MaxFrames {
				log.Info("frame limit reached", zap.Int("frames", frames))
				return nil
			}
		case path, ok := <-reloads:
			if !ok {
				reloads = nil
				continue
			}
			if err := engine.Reload(path); err != nil {
				log.Warn("template reload failed", zap.String("file", path), zap.Error(err))
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
