package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
)

// IndexSync copies index generation artifacts between a local directory and
// remote object storage. The manifest is optional on both sides.
type IndexSync struct {
	local  ports.ObjectStorage
	remote ports.ObjectStorage
}

func NewIndexSync(local, remote ports.ObjectStorage) *IndexSync {
	return &IndexSync{local: local, remote: remote}
}

// Publish uploads a local generation.
func (uc *IndexSync) Publish(ctx context.Context, gen domain.IndexGeneration) error {
	if err := uc.copyGeneration(ctx, gen, uc.local, uc.remote); err != nil {
		return fmt.Errorf("publish %s index: %w", gen, err)
	}
	slog.Info("index_published", "generation", string(gen))
	return nil
}

// Pull downloads a remote generation.
func (uc *IndexSync) Pull(ctx context.Context, gen domain.IndexGeneration) error {
	if err := uc.copyGeneration(ctx, gen, uc.remote, uc.local); err != nil {
		return fmt.Errorf("pull %s index: %w", gen, err)
	}
	slog.Info("index_pulled", "generation", string(gen))
	return nil
}

// PullPreferred downloads the first generation the remote holds in full.
func (uc *IndexSync) PullPreferred(ctx context.Context) (domain.IndexGeneration, error) {
	for _, gen := range domain.IndexGenerations {
		err := uc.Pull(ctx, gen)
		if err == nil {
			return gen, nil
		}
		if !domain.IsKind(err, domain.ErrIndexNotFound) {
			return "", err
		}
		slog.Debug("index_generation_absent", "generation", string(gen))
	}
	return "", domain.WrapError(domain.ErrIndexNotFound, "pull index", errors.New("remote holds no full or medium generation"))
}

func (uc *IndexSync) copyGeneration(ctx context.Context, gen domain.IndexGeneration, from, to ports.ObjectStorage) error {
	vectors, metadata, manifest := gen.ArtifactNames()
	for _, key := range []string{vectors, metadata} {
		if err := copyObject(ctx, from, to, key); err != nil {
			return err
		}
	}
	if err := copyObject(ctx, from, to, manifest); err != nil {
		if !domain.IsKind(err, domain.ErrIndexNotFound) {
			return err
		}
		slog.Warn("index_manifest_missing", "generation", string(gen), "key", manifest)
	}
	return nil
}

func copyObject(ctx context.Context, from, to ports.ObjectStorage, key string) error {
	src, err := from.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	defer src.Close()

	if err := to.Save(ctx, key, src); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
