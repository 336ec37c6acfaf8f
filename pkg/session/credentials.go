package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	_ "modernc.org/sqlite"

	"github.com/caam1406/wahook/pkg/config"
)

// CredentialStore wraps the provider's credential container. The bundle
// itself is opaque: this store only loads it on start, lets the provider
// write incremental updates, and deletes it wholesale on reset or logout.
// Incremental saves happen synchronously inside the provider against the
// same container, so a completed update is always durable before the
// provider acknowledges it.
type CredentialStore struct {
	container *sqlstore.Container
}

// OpenCredentialStore opens (and migrates) the credential database. A
// configured database URL selects postgres; otherwise a local sqlite file is
// used.
func OpenCredentialStore(ctx context.Context, cfg config.WhatsAppConfig) (*CredentialStore, error) {
	dialect, dsn, err := resolveCredentialTarget(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}
	if dialect == "sqlite" {
		// Serialize access through a single connection to prevent SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	container := sqlstore.NewWithDB(db, dialect, waLog.Stdout("Session-DB", "WARN", true))
	if err := container.Upgrade(ctx); err != nil {
		return nil, fmt.Errorf("failed to upgrade credential database: %w", err)
	}

	return &CredentialStore{container: container}, nil
}

func resolveCredentialTarget(cfg config.WhatsAppConfig) (string, string, error) {
	if url := strings.TrimSpace(cfg.DatabaseURL); url != "" {
		return "postgres", url, nil
	}

	path := expandHome(cfg.StorePath)
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".wahook", "whatsapp.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", "", fmt.Errorf("failed to create store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", path)
	return "sqlite", dsn, nil
}

// Device loads the stored device, creating a blank one when no credentials
// exist yet. A blank device makes the provider start a pairing flow.
func (s *CredentialStore) Device(ctx context.Context) (*store.Device, error) {
	device, err := s.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load device from store: %w", err)
	}
	return device, nil
}

// Purge deletes every stored credential bundle. The next connect attempt
// starts a fresh pairing flow.
func (s *CredentialStore) Purge(ctx context.Context) error {
	devices, err := s.container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	for _, device := range devices {
		if err := s.container.DeleteDevice(ctx, device); err != nil {
			return fmt.Errorf("failed to delete device %s: %w", device.ID, err)
		}
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && (path[1] == '/' || path[1] == '\\') {
		return home + path[1:]
	}
	return home
}
