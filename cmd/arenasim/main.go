package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arenasim/simcore/internal/arena"
	"github.com/arenasim/simcore/internal/config"
	"github.com/arenasim/simcore/internal/core/system"
	"github.com/arenasim/simcore/internal/data"
	"github.com/arenasim/simcore/internal/persist"
	"github.com/arenasim/simcore/internal/scripting"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(seed uint32, workers int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             arenasim  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      parallel arena entity simulation     \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mseed:\033[0m %d \033[90m(workers: %d)\033[0m\n\n", seed, workers)
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

// ── Main loop ──────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/arenasim.toml"
	if p := os.Getenv("ARENASIM_CONFIG"); p != "" {
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

	switch cfg.Profile.Mode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.Profile.Path), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(cfg.Profile.Path), profile.Quiet).Stop()
	}

	sched := system.NewScheduler(cfg.Sim.Workers, log)
	defer sched.Close()

	printBanner(cfg.Sim.Seed, sched.Workers())

	// 3. Optional telemetry database
	var repo *persist.RoundRepo
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.Open(ctx, cfg.Database, log)
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		repo = persist.NewRoundRepo(db)
		printOK("PostgreSQL connected, migrations applied")
		fmt.Println()
	}

	// 4. Load data and rules
	printSection("data")

	table, err := data.LoadGroupTable(cfg.Data.Groups)
	if err != nil {
		return fmt.Errorf("load group table: %w", err)
	}
	printStat("groups", table.Count())
	printStat("links", len(table.Links))
	printStat("fire routes", len(table.Fire))

	rules, err := scripting.NewEngine(cfg.Data.Scripts, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer rules.Close()
	printOK("Lua rules loaded")
	fmt.Println()

	// 5. Build the arena
	a := arena.NewArena(arena.Config{
		Seed:        cfg.Sim.Seed,
		Chunk:       cfg.Sim.BatchSize,
		RenderLimit: cfg.Sim.RenderLimit,
	}, sched, log)
	defer a.Dispose()

	if err := table.Build(a, cfg.Arena.CellSize); err != nil {
		return fmt.Errorf("build arena: %w", err)
	}
	capacity := 0
	for _, grp := range a.Groups() {
		capacity += grp.Pool().Capacity()
	}
	printStat("entity slots", capacity)

	game, err := NewGame(cfg, a, table, rules, repo, log)
	if err != nil {
		return err
	}

	// 6. Start the frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Sim.TickRate)
	defer ticker.Stop()

	printSection("running")
	printReady(fmt.Sprintf("frame loop started (tick: %s)", cfg.Sim.TickRate))
	fmt.Println()

	game.StartRound()
	dt := float32(cfg.Sim.TickRate.Seconds())
	frames := 0
	const reportInterval = 600

	for {
		select {
		case <-ticker.C:
			st := game.Tick(dt)
			frames++
			if frames%reportInterval == 0 {
				log.Info("frame",
					zap.Uint32("frame", st.Frame),
					zap.Int("round", game.Round()),
					zap.Int("kills", game.RoundKills()),
					zap.Int("rendered", st.Rendered),
					zap.Int("dropped", st.Dropped),
					zap.Int64("task_panics", sched.Panics()),
				)
			}
			if game.Done() || (cfg.Sim.MaxFrames > 0 && frames >= cfg.Sim.MaxFrames) {
				game.Shutdown()
				log.Info("simulation finished", zap.Int("frames", frames), zap.Int("rounds", game.Rounds()))
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			game.Shutdown()
			log.Info("simulation stopped", zap.Int("frames", frames))
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
