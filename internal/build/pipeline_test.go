package build

import (
	"strings"
	"testing"
	"time"

	"github.com/renderforge/kilnd/internal/manifest"
)

func TestExpandCommand(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   map[string]string
		want     string
	}{
		{
			name:     "resolver template",
			template: "pip wheel --wheel-dir {artifacts} --requirement {manifest}",
			values:   map[string]string{"manifest": "/var/lib/kiln/requirements.txt", "artifacts": "/var/lib/kiln/artifacts"},
			want:     "pip wheel --wheel-dir /var/lib/kiln/artifacts --requirement /var/lib/kiln/requirements.txt",
		},
		{
			name:     "repeated placeholder",
			template: "echo {packages} && install {packages}",
			values:   map[string]string{"packages": "libgl1 libxi6"},
			want:     "echo libgl1 libxi6 && install libgl1 libxi6",
		},
		{
			name:     "unknown placeholder preserved",
			template: "run {other}",
			values:   map[string]string{"manifest": "m"},
			want:     "run {other}",
		},
		{
			name:     "no placeholders",
			template: "apt-get update",
			values:   map[string]string{"packages": "x"},
			want:     "apt-get update",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandCommand(tt.template, tt.values); got != tt.want {
				t.Fatalf("expandCommand = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnviron(t *testing.T) {
	env := map[string]string{
		"PYTHONUNBUFFERED": "1",
		"LANG":             "C.UTF-8",
		"APP_MODE":         "worker",
	}

	got := environ(env)
	want := []string{"APP_MODE=worker", "LANG=C.UTF-8", "PYTHONUNBUFFERED=1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("environ = %v, want %v", got, want)
	}

	if environ(nil) != nil {
		t.Fatal("environ(nil) != nil")
	}
}

func TestPlatformSlug(t *testing.T) {
	if got := platformSlug("linux/amd64"); got != "linux-amd64" {
		t.Fatalf("platformSlug = %q, want %q", got, "linux-amd64")
	}
	if got := platformSlug("linux/arm/v7"); got != "linux-arm-v7" {
		t.Fatalf("platformSlug = %q, want %q", got, "linux-arm-v7")
	}
}

func TestContainerID(t *testing.T) {
	b := &bake{plan: &manifest.Plan{Name: "worker"}}

	if got := b.containerID("resolve", "linux/amd64"); got != "worker-linux-amd64-resolve" {
		t.Fatalf("containerID = %q", got)
	}
	if got := b.containerID("assemble", "linux/arm64"); got != "worker-linux-arm64-assemble" {
		t.Fatalf("containerID = %q", got)
	}
}

func TestPlatformOutput(t *testing.T) {
	single := &bake{output: "dist", platforms: []string{"linux/amd64"}}
	if got := single.platformOutput("linux/amd64"); got != "dist" {
		t.Fatalf("single-platform output = %q, want %q", got, "dist")
	}

	multi := &bake{output: "dist", platforms: []string{"linux/amd64", "linux/arm64"}}
	if got := multi.platformOutput("linux/arm64"); got != "dist/linux-arm64" {
		t.Fatalf("multi-platform output = %q, want %q", got, "dist/linux-arm64")
	}
}

func TestURLFileName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://download.blender.org/release/Blender4.2/blender-4.2.3-linux-x64.tar.xz", "blender-4.2.3-linux-x64.tar.xz"},
		{"https://example.com/tool.tar.gz?token=abc", "tool.tar.gz"},
		{"https://example.com/a/b/c.tgz#frag", "c.tgz"},
	}

	for _, tt := range tests {
		if got := urlFileName(tt.url); got != tt.want {
			t.Fatalf("urlFileName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestTail(t *testing.T) {
	if got := tail("  short  "); got != "short" {
		t.Fatalf("tail = %q", got)
	}

	long := strings.Repeat("x", 2000)
	got := tail(long)
	if !strings.HasPrefix(got, "...") || len(got) != 515 {
		t.Fatalf("tail of long string = %d bytes with prefix %q", len(got), got[:3])
	}
}

func TestHealthConfig(t *testing.T) {
	hc := healthConfig(&manifest.Healthcheck{
		Test:        []string{"blender", "--version"},
		Interval:    manifest.Duration(30 * time.Second),
		Timeout:     manifest.Duration(10 * time.Second),
		StartPeriod: manifest.Duration(5 * time.Second),
		Retries:     3,
	})

	want := []string{"CMD", "blender", "--version"}
	if strings.Join(hc.Test, " ") != strings.Join(want, " ") {
		t.Fatalf("test = %v, want %v", hc.Test, want)
	}
	if hc.Interval != 30*time.Second || hc.Timeout != 10*time.Second {
		t.Fatalf("durations = %v/%v", hc.Interval, hc.Timeout)
	}
	if hc.StartPeriod != 5*time.Second || hc.Retries != 3 {
		t.Fatalf("start period %v, retries %d", hc.StartPeriod, hc.Retries)
	}

	if healthConfig(nil) != nil {
		t.Fatal("healthConfig(nil) != nil")
	}
}

func TestOwnershipCommand(t *testing.T) {
	id := manifest.Identity{User: "worker", Group: "worker", UID: 1001, GID: 1001}
	dirs := []string{"/worker", "/var/log/renderforge", "/workdir"}

	got := ownershipCommand(id, dirs)
	want := "mkdir -p /worker /var/log/renderforge /workdir && chown -R 1001:1001 /worker /var/log/renderforge /workdir"
	if got != want {
		t.Fatalf("ownershipCommand = %q, want %q", got, want)
	}

	// Owned log and scratch directories usually do not exist at bake time;
	// they must be created before the chown or the whole bake aborts.
	mkdir := strings.Index(got, "mkdir -p")
	chown := strings.Index(got, "chown -R")
	if mkdir == -1 || chown == -1 || mkdir > chown {
		t.Fatalf("directories not created before chown: %q", got)
	}
}

func TestUnpackCommand(t *testing.T) {
	got := unpackCommand("/var/lib/kiln/blender-4.2.3-linux-x64.tar.xz", "/opt/blender-4.2.3")

	if !strings.Contains(got, "tar -xf /var/lib/kiln/blender-4.2.3-linux-x64.tar.xz -C /opt/blender-4.2.3 --strip-components=1") {
		t.Fatalf("unpackCommand = %q", got)
	}

	// The stage directory itself must go, not just the archive; anything
	// left under it would ship in the exported image.
	if !strings.Contains(got, "rm -rf "+stageDir) {
		t.Fatalf("unpackCommand does not remove the stage directory: %q", got)
	}
}

func TestImageSettings(t *testing.T) {
	b := &bake{plan: &manifest.Plan{
		Name:       "web",
		Entrypoint: []string{"gunicorn", "app:create_app()"},
		Env:        map[string]string{"LANG": "C.UTF-8"},
		Identity:   manifest.Identity{User: "app", Group: "app", UID: 1000, GID: 1000},
		Workdir:    "/srv/app",
		Expose:     8000,
	}}

	settings := b.imageSettings()

	if settings.User != "1000:1000" {
		t.Errorf("user = %q, want numeric uid:gid", settings.User)
	}
	if settings.WorkingDir != "/srv/app" {
		t.Errorf("workdir = %q", settings.WorkingDir)
	}
	if settings.ExposedPort != 8000 {
		t.Errorf("exposed port = %d", settings.ExposedPort)
	}
	if settings.Healthcheck != nil {
		t.Error("healthcheck set for plan without one")
	}
	if strings.Join(settings.Entrypoint, " ") != "gunicorn app:create_app()" {
		t.Errorf("entrypoint = %v", settings.Entrypoint)
	}
	if strings.Join(settings.Env, ",") != "LANG=C.UTF-8" {
		t.Errorf("env = %v", settings.Env)
	}
}
