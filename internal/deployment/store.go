package deployment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"drainReversal/internal/model"
	"drainReversal/internal/storage/postgres"
)

// StateStore persists the world state between CLI invocations.
type StateStore interface {
	Load(ctx context.Context) (*model.WorldState, bool, error)
	Save(ctx context.Context, world *model.WorldState) error
}

// FileStateStore stores the world state in a local JSON file.
type FileStateStore struct {
	Path string
}

func (s *FileStateStore) Load(ctx context.Context) (*model.WorldState, bool, error) {
	if s == nil || s.Path == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read state: %w", err)
	}

	var world model.WorldState
	if err := json.Unmarshal(data, &world); err != nil {
		return nil, false, fmt.Errorf("parse state: %w", err)
	}
	return &world, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, world *model.WorldState) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(world, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// DBStateStore stores the world state in the world_state table and mirrors
// pools, vault snapshots and registry bindings into their own tables.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (*model.WorldState, bool, error) {
	if s == nil || s.Store == nil {
		return nil, false, nil
	}
	return s.Store.LoadWorld(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, world *model.WorldState) error {
	if s == nil || s.Store == nil {
		return nil
	}
	if err := s.Store.SaveWorld(ctx, s.Name, world); err != nil {
		return err
	}
	if err := s.Store.UpsertPools(ctx, world.ChainID, world.Pools); err != nil {
		return fmt.Errorf("mirror pools: %w", err)
	}
	if err := s.Store.UpsertVaultSnapshots(ctx, world.ChainID, world.Vault); err != nil {
		return fmt.Errorf("mirror vault: %w", err)
	}
	if err := s.Store.UpsertImplementations(ctx, world.ChainID, world.Implementations); err != nil {
		return fmt.Errorf("mirror registry: %w", err)
	}
	return nil
}

// MultiStateStore loads from the first store holding a state and saves to all.
type MultiStateStore []StateStore

func (m MultiStateStore) Load(ctx context.Context) (*model.WorldState, bool, error) {
	for _, s := range m {
		world, ok, err := s.Load(ctx)
		if err != nil || ok {
			return world, ok, err
		}
	}
	return nil, false, nil
}

func (m MultiStateStore) Save(ctx context.Context, world *model.WorldState) error {
	for _, s := range m {
		if err := s.Save(ctx, world); err != nil {
			return err
		}
	}
	return nil
}
