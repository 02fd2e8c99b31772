// Package store persists tunnels: metadata in a SQLite database via gorm,
// configuration text in a keystore.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/plexsphere/wgtunnel/internal/keystore"
	"github.com/plexsphere/wgtunnel/internal/legacy"
	"github.com/plexsphere/wgtunnel/internal/wgconf"
)

var (
	// ErrNotFound is returned when no tunnel has the requested name.
	ErrNotFound = errors.New("store: tunnel not found")
	// ErrNameTaken is returned when another tunnel already uses a name.
	ErrNameTaken = errors.New("store: tunnel name already in use")
)

// Secrets stores configuration text out of band.
type Secrets interface {
	Put(secret []byte) (keystore.Ref, error)
	Get(ref keystore.Ref) ([]byte, error)
	Delete(ref keystore.Ref) error
	Prune(keep map[keystore.Ref]bool) (int, error)
}

// Tunnel is a stored tunnel. Config is nil when the stored configuration
// could not be recovered.
type Tunnel struct {
	ID        string
	Name      string
	Config    *wgconf.TunnelConfiguration
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the tunnel repository.
type Store struct {
	db      *gorm.DB
	secrets Secrets
	parser  *wgconf.Parser
	logger  *slog.Logger
}

// Open opens the database at path, creating the schema if needed.
func Open(path string, secrets Secrets, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&TunnelRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return &Store{
		db:      db,
		secrets: secrets,
		parser:  wgconf.NewParser(logger),
		logger:  logger,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return sqlDB.Close()
}

// Add stores a new tunnel. cfg must be valid and named.
func (s *Store) Add(ctx context.Context, cfg *wgconf.TunnelConfiguration) (*Tunnel, error) {
	if err := validateNamed(cfg); err != nil {
		return nil, fmt.Errorf("store: add: %w", err)
	}

	ref, pub, err := s.putSecret(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: add: %w", err)
	}

	rec := TunnelRecord{
		ID:        uuid.NewString(),
		Name:      cfg.Name,
		Version:   legacy.CurrentVersion,
		SecretRef: string(ref),
		PublicKey: pub,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, cfg.Name, ""); err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		s.dropSecret(ref)
		return nil, fmt.Errorf("store: add %q: %w", cfg.Name, err)
	}

	s.logger.Info("tunnel added",
		"component", "store",
		"name", cfg.Name,
		"id", rec.ID,
	)
	return &Tunnel{ID: rec.ID, Name: rec.Name, Config: cfg.Copy(), CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}, nil
}

// AddLegacy stores a version 1 record as-is. It is migrated the first time
// it is read.
func (s *Store) AddLegacy(ctx context.Context, name string, data []byte) (*Tunnel, error) {
	if err := wgconf.ValidateName(name); err != nil {
		return nil, fmt.Errorf("store: add legacy: %w", err)
	}
	rec := TunnelRecord{
		ID:         uuid.NewString(),
		Name:       name,
		Version:    legacy.Version,
		LegacyData: data,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, name, ""); err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store: add legacy %q: %w", name, err)
	}
	return s.load(ctx, &rec)
}

// Get returns the tunnel called name.
func (s *Store) Get(ctx context.Context, name string) (*Tunnel, error) {
	var rec TunnelRecord
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("store: get %q: %w", name, err)
	}
	return s.load(ctx, &rec)
}

// List returns all tunnels ordered by name. Records of an unsupported
// version are listed without a configuration.
func (s *Store) List(ctx context.Context) ([]*Tunnel, error) {
	var recs []TunnelRecord
	if err := s.db.WithContext(ctx).Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	out := make([]*Tunnel, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		t, err := s.load(ctx, rec)
		if errors.Is(err, legacy.ErrUnsupportedVersion) {
			s.logger.Warn("skipping configuration of unsupported record",
				"component", "store",
				"name", rec.Name,
				"version", rec.Version,
			)
			t = &Tunnel{ID: rec.ID, Name: rec.Name, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
		} else if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Names returns the names of all stored tunnels.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&TunnelRecord{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("store: names: %w", err)
	}
	return names, nil
}

// Replace swaps the configuration of the tunnel called name for cfg. A
// different cfg.Name renames the tunnel.
func (s *Store) Replace(ctx context.Context, name string, cfg *wgconf.TunnelConfiguration) (*Tunnel, error) {
	if err := validateNamed(cfg); err != nil {
		return nil, fmt.Errorf("store: replace: %w", err)
	}

	ref, pub, err := s.putSecret(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: replace: %w", err)
	}

	var rec TunnelRecord
	var oldRef string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", name).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %q", ErrNotFound, name)
			}
			return err
		}
		if err := ensureNameFree(tx, cfg.Name, rec.ID); err != nil {
			return err
		}
		oldRef = rec.SecretRef
		rec.Name = cfg.Name
		rec.Version = legacy.CurrentVersion
		rec.SecretRef = string(ref)
		rec.PublicKey = pub
		rec.LegacyData = nil
		return tx.Save(&rec).Error
	})
	if err != nil {
		s.dropSecret(ref)
		return nil, fmt.Errorf("store: replace %q: %w", name, err)
	}
	if oldRef != "" {
		s.dropSecret(keystore.Ref(oldRef))
	}

	s.logger.Info("tunnel replaced",
		"component", "store",
		"name", cfg.Name,
		"previous_name", name,
	)
	return &Tunnel{ID: rec.ID, Name: rec.Name, Config: cfg.Copy(), CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}, nil
}

// Remove deletes the tunnel called name and its secret.
func (s *Store) Remove(ctx context.Context, name string) error {
	var rec TunnelRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", name).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %q", ErrNotFound, name)
			}
			return err
		}
		return tx.Delete(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("store: remove: %w", err)
	}
	if rec.SecretRef != "" {
		s.dropSecret(keystore.Ref(rec.SecretRef))
	}

	s.logger.Info("tunnel removed",
		"component", "store",
		"name", name,
	)
	return nil
}

// PruneSecrets deletes keystore entries no tunnel refers to.
func (s *Store) PruneSecrets(ctx context.Context) (int, error) {
	var refs []string
	if err := s.db.WithContext(ctx).Model(&TunnelRecord{}).Where("secret_ref <> ''").Pluck("secret_ref", &refs).Error; err != nil {
		return 0, fmt.Errorf("store: prune secrets: %w", err)
	}
	keep := make(map[keystore.Ref]bool, len(refs))
	for _, r := range refs {
		keep[keystore.Ref(r)] = true
	}
	return s.secrets.Prune(keep)
}

// load turns a record into a Tunnel, migrating version 1 records in place.
func (s *Store) load(ctx context.Context, rec *TunnelRecord) (*Tunnel, error) {
	t := &Tunnel{ID: rec.ID, Name: rec.Name, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}

	switch rec.Version {
	case legacy.CurrentVersion:
		text, err := s.secrets.Get(keystore.Ref(rec.SecretRef))
		if err != nil {
			s.logger.Warn("tunnel secret unavailable",
				"component", "store",
				"name", rec.Name,
				"error", err,
			)
			return t, nil
		}
		cfg, err := s.parser.Parse(string(text), rec.Name)
		if err != nil {
			s.logger.Warn("stored configuration unreadable",
				"component", "store",
				"name", rec.Name,
				"error", err,
			)
			return t, nil
		}
		t.Config = cfg
		return t, nil

	case legacy.Version:
		cfg, err := legacy.Migrate(rec.LegacyData)
		if err != nil {
			s.logger.Warn("legacy migration failed",
				"component", "store",
				"name", rec.Name,
				"error", err,
			)
			return t, nil
		}
		cfg.Name = rec.Name
		if err := s.persistMigrated(ctx, rec, cfg); err != nil {
			return nil, err
		}
		t.Config = cfg
		t.UpdatedAt = rec.UpdatedAt
		return t, nil
	}

	return nil, fmt.Errorf("store: load %q: %w: %d", rec.Name, legacy.ErrUnsupportedVersion, rec.Version)
}

func (s *Store) persistMigrated(ctx context.Context, rec *TunnelRecord, cfg *wgconf.TunnelConfiguration) error {
	ref, pub, err := s.putSecret(cfg)
	if err != nil {
		return fmt.Errorf("store: migrate %q: %w", rec.Name, err)
	}
	rec.Version = legacy.CurrentVersion
	rec.SecretRef = string(ref)
	rec.PublicKey = pub
	rec.LegacyData = nil
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		s.dropSecret(ref)
		return fmt.Errorf("store: migrate %q: %w", rec.Name, err)
	}

	s.logger.Info("legacy tunnel migrated",
		"component", "store",
		"name", rec.Name,
	)
	return nil
}

func (s *Store) putSecret(cfg *wgconf.TunnelConfiguration) (keystore.Ref, string, error) {
	pub, err := cfg.PublicKey()
	if err != nil {
		return "", "", err
	}
	ref, err := s.secrets.Put([]byte(cfg.WgQuickConfig()))
	if err != nil {
		return "", "", err
	}
	return ref, pub.String(), nil
}

func (s *Store) dropSecret(ref keystore.Ref) {
	if err := s.secrets.Delete(ref); err != nil {
		s.logger.Warn("failed to delete secret",
			"component", "store",
			"error", err,
		)
	}
}

func ensureNameFree(tx *gorm.DB, name, exceptID string) error {
	q := tx.Model(&TunnelRecord{}).Where("name = ?", name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	return nil
}

func validateNamed(cfg *wgconf.TunnelConfiguration) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: name is required", wgconf.ErrInvalidName)
	}
	return cfg.Validate()
}
