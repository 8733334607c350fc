package runtime

import (
	"fmt"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func TestManifestGCLabels(t *testing.T) {
	m := ocispec.Manifest{
		Config: ocispec.Descriptor{
			Digest: digest.FromString("config"),
		},
		Layers: []ocispec.Descriptor{
			{Digest: digest.FromString("layer0")},
			{Digest: digest.FromString("layer1")},
		},
	}

	labels := manifestGCLabels(m)

	if got := labels["containerd.io/gc.ref.content.config"]; got != m.Config.Digest.String() {
		t.Fatalf("config label = %q, want %q", got, m.Config.Digest.String())
	}

	for i, layer := range m.Layers {
		key := fmt.Sprintf("containerd.io/gc.ref.content.l.%d", i)
		if got := labels[key]; got != layer.Digest.String() {
			t.Fatalf("labels[%q] = %q, want %q", key, got, layer.Digest.String())
		}
	}

	if len(labels) != 3 {
		t.Fatalf("len(labels) = %d, want 3", len(labels))
	}
}

func TestIndexGCLabels(t *testing.T) {
	idx := ocispec.Index{
		Manifests: []ocispec.Descriptor{
			{Digest: digest.FromString("m0")},
			{Digest: digest.FromString("m1")},
		},
	}

	labels := indexGCLabels(idx)
	if len(labels) != 2 {
		t.Fatalf("len(labels) = %d, want 2", len(labels))
	}
	for i, m := range idx.Manifests {
		key := fmt.Sprintf("containerd.io/gc.ref.content.m.%d", i)
		if labels[key] != m.Digest.String() {
			t.Fatalf("labels[%q] = %q, want %q", key, labels[key], m.Digest.String())
		}
	}
}
