package runtime

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func TestSettingsApply(t *testing.T) {
	config := imageConfig{
		ImageConfig: ocispec.ImageConfig{
			Env: []string{"PATH=/usr/bin", "LANG=C"},
			Cmd: []string{"/bin/sh"},
		},
	}

	settings := ImageSettings{
		Entrypoint:  []string{"python", "worker_entry.py"},
		Env:         []string{"LANG=C.UTF-8", "PYTHONUNBUFFERED=1"},
		User:        "1000:1000",
		WorkingDir:  "/worker",
		ExposedPort: 8000,
		Healthcheck: &HealthConfig{
			Test:     []string{"CMD", "blender", "--version"},
			Interval: 30 * time.Second,
			Timeout:  10 * time.Second,
			Retries:  3,
		},
	}

	settings.apply(&config)

	if got := strings.Join(config.Entrypoint, " "); got != "python worker_entry.py" {
		t.Errorf("entrypoint = %q", got)
	}
	if config.Cmd != nil {
		t.Error("cmd not cleared when entrypoint set")
	}
	if config.User != "1000:1000" {
		t.Errorf("user = %q", config.User)
	}
	if config.WorkingDir != "/worker" {
		t.Errorf("workdir = %q", config.WorkingDir)
	}
	if _, ok := config.ExposedPorts["8000/tcp"]; !ok {
		t.Errorf("exposed ports = %v, want 8000/tcp", config.ExposedPorts)
	}
	if config.Healthcheck == nil || config.Healthcheck.Retries != 3 {
		t.Errorf("healthcheck = %+v", config.Healthcheck)
	}

	want := []string{"PATH=/usr/bin", "LANG=C.UTF-8", "PYTHONUNBUFFERED=1"}
	if strings.Join(config.Env, ",") != strings.Join(want, ",") {
		t.Errorf("env = %v, want %v", config.Env, want)
	}
}

func TestSettingsApplyZeroValues(t *testing.T) {
	config := imageConfig{
		ImageConfig: ocispec.ImageConfig{
			User:       "0:0",
			Env:        []string{"PATH=/usr/bin"},
			Cmd:        []string{"/bin/sh"},
			WorkingDir: "/",
		},
	}

	(&ImageSettings{}).apply(&config)

	if config.User != "0:0" || config.WorkingDir != "/" || config.Cmd == nil {
		t.Fatalf("zero settings mutated config: %+v", config)
	}
	if config.ExposedPorts != nil || config.Healthcheck != nil {
		t.Fatalf("zero settings added ports or healthcheck: %+v", config)
	}
}

func TestOverlayEnv(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		overrides []string
		want      []string
	}{
		{
			name:      "replace in place",
			base:      []string{"A=1", "B=2"},
			overrides: []string{"A=x"},
			want:      []string{"A=x", "B=2"},
		},
		{
			name:      "append new",
			base:      []string{"A=1"},
			overrides: []string{"B=2", "C=3"},
			want:      []string{"A=1", "B=2", "C=3"},
		},
		{
			name:      "empty base",
			base:      nil,
			overrides: []string{"A=1"},
			want:      []string{"A=1"},
		},
		{
			name:      "deterministic order",
			base:      []string{"PATH=/usr/bin"},
			overrides: []string{"Z=last", "A=first"},
			want:      []string{"PATH=/usr/bin", "Z=last", "A=first"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overlayEnv(tt.base, tt.overrides)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigFileHealthcheckRoundTrip(t *testing.T) {
	cfg := configFile{}
	cfg.Config.Env = []string{"LANG=C.UTF-8"}
	cfg.Config.Healthcheck = &HealthConfig{
		Test:        []string{"CMD", "blender", "--version"},
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		StartPeriod: 5 * time.Second,
		Retries:     3,
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// The healthcheck must land inside the config block, where Docker-
	// compatible runtimes look for it.
	if !strings.Contains(string(data), `"Healthcheck"`) {
		t.Fatalf("serialized config missing Healthcheck: %s", data)
	}

	var decoded configFile
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Config.Healthcheck == nil {
		t.Fatal("healthcheck lost in round trip")
	}
	if decoded.Config.Healthcheck.Interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s", decoded.Config.Healthcheck.Interval)
	}
	if strings.Join(decoded.Config.Healthcheck.Test, " ") != "CMD blender --version" {
		t.Fatalf("test = %v", decoded.Config.Healthcheck.Test)
	}
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2"}, []string{"A=override", "C=3"})

	set := make(map[string]bool, len(got))
	for _, e := range got {
		set[e] = true
	}
	if !set["A=override"] || !set["B=2"] || !set["C=3"] || len(got) != 3 {
		t.Fatalf("mergeEnv = %v", got)
	}
}

func TestNextExecID(t *testing.T) {
	a := nextExecID()
	b := nextExecID()
	if a == b {
		t.Fatalf("nextExecID returned duplicate: %q", a)
	}
}
