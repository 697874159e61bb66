package config

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse(`
[sim]
tick_rate = "20ms"
workers = 3
seed = 9

[database]
enabled = true
`, "inline")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.TickRate != 20*time.Millisecond || cfg.Sim.Workers != 3 || cfg.Sim.Seed != 9 {
		t.Fatalf("sim %+v", cfg.Sim)
	}
	if cfg.Sim.RenderLimit != 1023 {
		t.Fatalf("render limit default lost: %d", cfg.Sim.RenderLimit)
	}
	if !cfg.Database.Enabled || cfg.Database.DSN == "" {
		t.Fatalf("database %+v", cfg.Database)
	}
	if cfg.Data.Groups != "data/yaml/groups.yaml" {
		t.Fatalf("data %+v", cfg.Data)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"zero tick":      "[sim]\ntick_rate = \"0s\"\n",
		"negative size":  "[sim]\nworkers = -1\n",
		"profile mode":   "[profile]\nmode = \"trace\"\n",
		"log format":     "[logging]\nformat = \"xml\"\n",
		"db without dsn": "[database]\nenabled = true\ndsn = \"\"\n",
		"bad toml":       "[sim\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(doc, name); err == nil {
				t.Fatal("accepted")
			}
		})
	}
}

func TestShippedConfigLoads(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	cfg, err := Load(filepath.Join(filepath.Dir(file), "..", "..", "config", "arenasim.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.TickRate != 16*time.Millisecond || cfg.Database.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("loaded %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
