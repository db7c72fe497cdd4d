// Package oci pushes rendered controller configuration to an OCI registry
// as an artifact, so that air-gapped or GitOps-driven installs can pull a
// pinned configuration instead of reading it off a local disk.
package oci

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const (
	// ArtifactType identifies a jenkube configuration bundle manifest.
	ArtifactType = "application/vnd.jenkube.config.v1"

	// ConfigMediaType is the layer media type for the rendered
	// configuration-as-code document.
	ConfigMediaType = "application/vnd.jenkube.casc.v1+yaml"
)

// PushOptions controls registry access for Push.
type PushOptions struct {
	// Username and Password authenticate against the registry. Both empty
	// means anonymous access.
	Username string
	Password string

	// PlainHTTP allows pushing to registries without TLS, e.g. a local
	// registry during development.
	PlainHTTP bool

	// Annotations are attached to the artifact manifest.
	Annotations map[string]string
}

// Push packages the file at configPath as a single-layer OCI artifact and
// pushes it to ref (e.g. "registry.example.com/jenkube/config:v1"). It
// returns the manifest digest.
func Push(ctx context.Context, ref, configPath string, opts PushOptions) (string, error) {
	if _, err := os.Stat(configPath); err != nil {
		return "", fmt.Errorf("failed to read configuration %s: %w", configPath, err)
	}

	workDir, err := os.MkdirTemp("", "jenkube-oci-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	store, err := file.New(workDir)
	if err != nil {
		return "", fmt.Errorf("failed to create file store: %w", err)
	}
	defer store.Close()

	layer, err := store.Add(ctx, filepath.Base(configPath), ConfigMediaType, configPath)
	if err != nil {
		return "", fmt.Errorf("failed to stage configuration: %w", err)
	}

	manifest, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, ArtifactType,
		oras.PackManifestOptions{
			Layers:              []ocispec.Descriptor{layer},
			ManifestAnnotations: opts.Annotations,
		})
	if err != nil {
		return "", fmt.Errorf("failed to pack manifest: %w", err)
	}

	repo, err := remote.NewRepository(ref)
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	repo.PlainHTTP = opts.PlainHTTP

	if opts.Username != "" || opts.Password != "" {
		repo.Client = &auth.Client{
			Client: retry.DefaultClient,
			Cache:  auth.NewCache(),
			Credential: auth.StaticCredential(repo.Reference.Registry, auth.Credential{
				Username: opts.Username,
				Password: opts.Password,
			}),
		}
	}

	tag := repo.Reference.Reference
	if tag == "" {
		tag = "latest"
	}

	if err := store.Tag(ctx, manifest, tag); err != nil {
		return "", fmt.Errorf("failed to tag manifest: %w", err)
	}

	slog.Debug("pushing configuration bundle",
		slog.String("ref", ref),
		slog.String("digest", manifest.Digest.String()),
	)

	pushed, err := oras.Copy(ctx, store, tag, repo, tag, oras.DefaultCopyOptions)
	if err != nil {
		return "", fmt.Errorf("failed to push to %s: %w", ref, err)
	}

	return pushed.Digest.String(), nil
}
