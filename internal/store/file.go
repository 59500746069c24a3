package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileStore persists accounts and assets as one YAML file per record under a
// data directory. Reads and increments go through an in-memory view whose
// mutex makes them atomic; mutations write through to disk afterwards.
type FileStore struct {
	dir string
	mem *MemoryStore
}

var (
	_ AccountStore = (*FileStore)(nil)
	_ AssetStore   = (*FileStore)(nil)
)

// NewFileStore opens (or creates) a data directory and loads existing
// records.
func NewFileStore(dir string) (*FileStore, error) {
	fs := &FileStore{dir: dir, mem: NewMemoryStore()}

	for _, sub := range []string{"accounts", "assets"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s dir: %w", sub, err)
		}
	}

	if err := fs.loadAccounts(); err != nil {
		return nil, err
	}
	if err := fs.loadAssets(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) loadAccounts() error {
	entries, err := os.ReadDir(filepath.Join(fs.dir, "accounts"))
	if err != nil {
		return fmt.Errorf("reading accounts dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.dir, "accounts", e.Name()))
		if err != nil {
			return fmt.Errorf("reading account %s: %w", e.Name(), err)
		}
		var acct Account
		if err := yaml.Unmarshal(data, &acct); err != nil {
			return fmt.Errorf("parsing account %s: %w", e.Name(), err)
		}
		fs.mem.accounts[acct.ID] = &acct
	}
	return nil
}

func (fs *FileStore) loadAssets() error {
	entries, err := os.ReadDir(filepath.Join(fs.dir, "assets"))
	if err != nil {
		return fmt.Errorf("reading assets dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.dir, "assets", e.Name()))
		if err != nil {
			return fmt.Errorf("reading asset %s: %w", e.Name(), err)
		}
		var a Asset
		if err := yaml.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("parsing asset %s: %w", e.Name(), err)
		}
		fs.mem.assets[a.ID] = &a
	}
	return nil
}

func (fs *FileStore) writeYAML(sub, id string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s/%s: %w", sub, id, err)
	}
	path := filepath.Join(fs.dir, sub, id+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (fs *FileStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	return fs.mem.GetAccount(ctx, id)
}

func (fs *FileStore) GetAccountByOpenID(ctx context.Context, openID string) (*Account, error) {
	return fs.mem.GetAccountByOpenID(ctx, openID)
}

func (fs *FileStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	return fs.mem.ListAccounts(ctx)
}

func (fs *FileStore) CreateAccount(ctx context.Context, acct *Account) error {
	if err := fs.mem.CreateAccount(ctx, acct); err != nil {
		return err
	}
	return fs.writeYAML("accounts", acct.ID, acct)
}

func (fs *FileStore) UpdateAccount(ctx context.Context, acct *Account) error {
	if err := fs.mem.UpdateAccount(ctx, acct); err != nil {
		return err
	}
	return fs.writeYAML("accounts", acct.ID, acct)
}

func (fs *FileStore) IncrementUsage(ctx context.Context, id string) error {
	if err := fs.mem.IncrementUsage(ctx, id); err != nil {
		return err
	}
	acct, err := fs.mem.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	return fs.writeYAML("accounts", id, acct)
}

func (fs *FileStore) CreateAsset(ctx context.Context, a *Asset) error {
	if err := fs.mem.CreateAsset(ctx, a); err != nil {
		return err
	}
	return fs.writeYAML("assets", a.ID, a)
}

func (fs *FileStore) GetAsset(ctx context.Context, id string) (*Asset, error) {
	return fs.mem.GetAsset(ctx, id)
}

func (fs *FileStore) ListAssets(ctx context.Context, opts ListOptions) ([]*Asset, int, error) {
	return fs.mem.ListAssets(ctx, opts)
}

func (fs *FileStore) DeleteAsset(ctx context.Context, id string) error {
	if err := fs.mem.DeleteAsset(ctx, id); err != nil {
		return err
	}
	path := filepath.Join(fs.dir, "assets", id+".yaml")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}
