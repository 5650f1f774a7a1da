// internal/partition/manager.go
package partition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/model"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ManagerIface is the set of partition operations the lifecycle services use.
type ManagerIface interface {
	Create(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
	Rename(ctx context.Context, oldName, newName string) error
}

// Manager provisions per-tenant partitions as tables of the master database.
type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// markerKind marks the document written while materializing a partition.
const markerKind = "init"

// Create makes an empty partition. The table is created and a marker document
// written and removed in the same transaction, so a partition either comes
// back writable and empty or not at all.
func (m *Manager) Create(ctx context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPartitionName, name)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(name).Migrator().CreateTable(&model.Document{}); err != nil {
			return fmt.Errorf("creating partition table: %w", err)
		}

		marker := &model.Document{Kind: markerKind, Body: model.JSONMap{}}
		if err := tx.Table(name).Create(marker).Error; err != nil {
			return fmt.Errorf("writing marker document: %w", err)
		}

		if err := tx.Table(name).Where("id = ?", marker.ID).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("removing marker document: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("creating partition %s: %w", name, err)
	}

	slog.InfoContext(ctx, "partition created", "partition", name)
	return nil
}

func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	if !ValidName(name) {
		return false, nil
	}
	return m.db.WithContext(ctx).Migrator().HasTable(name), nil
}

// Delete drops the partition and everything in it. Dropping a partition that
// does not exist is not an error. Names DeriveName cannot produce never refer
// to a partition, so they are a no-op rather than a drop of some other table.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		slog.DebugContext(ctx, "ignoring delete of non-partition name", "partition", name)
		return nil
	}

	if err := m.db.WithContext(ctx).Migrator().DropTable(name); err != nil {
		return fmt.Errorf("dropping partition %s: %w", name, err)
	}

	slog.InfoContext(ctx, "partition deleted", "partition", name)
	return nil
}

// Rename copies every document of oldName into newName and drops oldName.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) error {
	if !ValidName(oldName) || !ValidName(newName) {
		return fmt.Errorf("%w: %q -> %q", domain.ErrInvalidPartitionName, oldName, newName)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !tx.Migrator().HasTable(oldName) {
			return domain.ErrPartitionNotFound
		}

		if !tx.Migrator().HasTable(newName) {
			if err := tx.Table(newName).Migrator().CreateTable(&model.Document{}); err != nil {
				return fmt.Errorf("creating target partition: %w", err)
			}
		}

		copyStmt := fmt.Sprintf(
			"INSERT INTO %s (id, kind, body, created_at) SELECT id, kind, body, created_at FROM %s",
			pq.QuoteIdentifier(newName),
			pq.QuoteIdentifier(oldName),
		)
		if err := tx.Exec(copyStmt).Error; err != nil {
			return fmt.Errorf("copying documents: %w", err)
		}

		if err := tx.Migrator().DropTable(oldName); err != nil {
			return fmt.Errorf("dropping source partition: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("renaming partition %s to %s: %w", oldName, newName, err)
	}

	slog.InfoContext(ctx, "partition renamed", "from", oldName, "to", newName)
	return nil
}

// List returns every partition table in the current schema, sorted by name.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	var tables []string
	err := m.db.WithContext(ctx).Raw(
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name LIKE ? ESCAPE '\'
		 ORDER BY table_name`,
		`org\_%`,
	).Scan(&tables).Error
	if err != nil {
		return nil, fmt.Errorf("listing partitions: %w", err)
	}

	names := tables[:0]
	for _, t := range tables {
		if ValidName(t) {
			names = append(names, t)
		}
	}
	return names, nil
}

// Count returns the number of documents in a partition.
func (m *Manager) Count(ctx context.Context, name string) (int64, error) {
	if !ValidName(name) {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidPartitionName, name)
	}

	var count int64
	if err := m.db.WithContext(ctx).Table(name).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting partition %s: %w", name, err)
	}
	return count, nil
}

// Insert stores a document in the partition.
func (m *Manager) Insert(ctx context.Context, name string, doc *model.Document) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPartitionName, name)
	}

	if err := m.db.WithContext(ctx).Table(name).Create(doc).Error; err != nil {
		return fmt.Errorf("inserting into partition %s: %w", name, err)
	}
	return nil
}
