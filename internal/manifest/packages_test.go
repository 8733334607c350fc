package manifest

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRequirements(t *testing.T) {
	input := `
# web runtime dependencies
fastapi==0.110.0
uvicorn[standard]>=0.29,<0.30
Pillow==10.3.0  # image handling
redis==5.0.4 ; python_version >= "3.8"

rq==1.16.2
`

	reqs, err := ParseRequirements(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Requirement{
		{Name: "fastapi", Constraint: "==0.110.0", Line: 3},
		{Name: "uvicorn", Constraint: ">=0.29,<0.30", Line: 4},
		{Name: "Pillow", Constraint: "==10.3.0", Line: 5},
		{Name: "redis", Constraint: "==5.0.4", Line: 6},
		{Name: "rq", Constraint: "==1.16.2", Line: 8},
	}

	if len(reqs) != len(want) {
		t.Fatalf("len = %d, want %d\ngot: %+v", len(reqs), len(want), reqs)
	}
	for i := range want {
		if reqs[i] != want[i] {
			t.Errorf("reqs[%d] = %+v, want %+v", i, reqs[i], want[i])
		}
	}
}

func TestParseRequirementsUnpinned(t *testing.T) {
	reqs, err := ParseRequirements(strings.NewReader("numpy\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("len = %d, want 1", len(reqs))
	}
	if reqs[0].Name != "numpy" || reqs[0].Constraint != "" {
		t.Fatalf("req = %+v, want numpy with empty constraint", reqs[0])
	}
}

func TestParseRequirementsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{
			name:  "empty manifest",
			input: "# only comments\n\n",
			want:  ErrManifestEmpty,
		},
		{
			name:  "invalid name",
			input: "in valid==1.0\n",
			want:  ErrManifestInvalid,
		},
		{
			name:  "bare operator",
			input: "==1.0\n",
			want:  ErrManifestInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequirements(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"requests", "requests"},
		{"Pillow", "pillow"},
		{"ruamel.yaml", "ruamel-yaml"},
		{"typing_extensions", "typing-extensions"},
		{"a--b__c", "a-b-c"},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMissingArtifacts(t *testing.T) {
	reqs := []Requirement{
		{Name: "fastapi", Line: 1},
		{Name: "typing_extensions", Line: 2},
		{Name: "Pillow", Line: 3},
		{Name: "rq", Line: 4},
	}
	files := []string{
		"fastapi-0.110.0-py3-none-any.whl",
		"typing_extensions-4.11.0-py3-none-any.whl",
		"pillow-10.3.0-cp311-cp311-manylinux_2_28_x86_64.whl",
	}

	missing := MissingArtifacts(reqs, files)
	if len(missing) != 1 {
		t.Fatalf("missing = %+v, want exactly rq", missing)
	}
	if missing[0].Name != "rq" {
		t.Fatalf("missing[0] = %+v, want rq", missing[0])
	}
}

func TestMissingArtifactsAllSatisfied(t *testing.T) {
	reqs := []Requirement{{Name: "pyyaml", Line: 1}}
	files := []string{"PyYAML-6.0.1.tar.gz"}

	if missing := MissingArtifacts(reqs, files); missing != nil {
		t.Fatalf("missing = %+v, want nil", missing)
	}
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		file string
		want string
		ok   bool
	}{
		{"requests-2.31.0-py3-none-any.whl", "requests", true},
		{"typing_extensions-4.11.0-py3-none-any.whl", "typing-extensions", true},
		{"PyYAML-6.0.1.tar.gz", "pyyaml", true},
		{"ruamel.yaml-0.18.6-py3-none-any.whl", "ruamel-yaml", true},
		{"1234-weird", "", false},
	}

	for _, tt := range tests {
		got, ok := artifactName(tt.file)
		if ok != tt.ok {
			t.Errorf("artifactName(%q) ok = %v, want %v", tt.file, ok, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("artifactName(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}
