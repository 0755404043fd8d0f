package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// LocalPrefix is the public path local attachments are served under.
const LocalPrefix = "/uploads/chat"

type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *LocalStore) Dir() string { return l.dir }

func (l *LocalStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	path := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return l.baseURL + LocalPrefix + "/" + key, nil
}
