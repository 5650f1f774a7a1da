// internal/service/reconciliation.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/model"
	"github.com/google/uuid"
)

type OrganizationLister interface {
	List(ctx context.Context) ([]*model.Organization, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error)
}

type UnlinkedAdminStore interface {
	ListUnlinked(ctx context.Context, createdBefore time.Time) ([]*model.Admin, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PartitionInventory interface {
	List(ctx context.Context) ([]string, error)
	Create(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
}

// ReconciliationService repairs what failed compensations and interrupted
// deletes leave behind.
type ReconciliationService struct {
	orgs        OrganizationLister
	admins      UnlinkedAdminStore
	partitions  PartitionInventory
	adminGrace  time.Duration
	dropOrphans bool
	dryRun      bool // If true, don't make changes, just log
	logger      *slog.Logger
}

func NewReconciliationService(
	orgs OrganizationLister,
	admins UnlinkedAdminStore,
	partitions PartitionInventory,
	logger *slog.Logger,
) *ReconciliationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationService{
		orgs:       orgs,
		admins:     admins,
		partitions: partitions,
		adminGrace: 10 * time.Minute,
		logger:     logger,
	}
}

// SetDryRun sets whether to actually make changes or just log what would be done
func (s *ReconciliationService) SetDryRun(dryRun bool) {
	s.dryRun = dryRun
}

// SetAdminGrace sets how old an unlinked admin must be before it is removed.
// Younger admins may belong to a create that is still running.
func (s *ReconciliationService) SetAdminGrace(grace time.Duration) {
	if grace > 0 {
		s.adminGrace = grace
	}
}

// SetDropOrphans enables dropping partitions no organization refers to.
// Partitions carry no creation time, so an in-flight create can look orphaned;
// only enable this while no creates are running. Missing partitions are
// recreated only after the organization is re-read, so a delete that is
// still tearing down is left alone.
func (s *ReconciliationService) SetDropOrphans(drop bool) {
	s.dropOrphans = drop
}

type ReconcileReport struct {
	MissingPartitions []string    `json:"missing_partitions"`
	OrphanPartitions  []string    `json:"orphan_partitions"`
	UnlinkedAdmins    []uuid.UUID `json:"unlinked_admins"`
	DryRun            bool        `json:"dry_run"`
}

// Run makes one reconciliation pass.
func (s *ReconciliationService) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{DryRun: s.dryRun}

	s.logger.Info("starting reconciliation", "dry_run", s.dryRun)

	if err := s.reconcilePartitions(ctx, report); err != nil {
		return report, fmt.Errorf("reconciling partitions: %w", err)
	}

	if err := s.reconcileAdmins(ctx, report); err != nil {
		return report, fmt.Errorf("reconciling admins: %w", err)
	}

	s.logger.Info("completed reconciliation",
		"missing_partitions", len(report.MissingPartitions),
		"orphan_partitions", len(report.OrphanPartitions),
		"unlinked_admins", len(report.UnlinkedAdmins),
	)
	return report, nil
}

func (s *ReconciliationService) reconcilePartitions(ctx context.Context, report *ReconcileReport) error {
	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return err
	}

	existing, err := s.partitions.List(ctx)
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	referenced := make(map[string]bool, len(orgs))
	for _, org := range orgs {
		referenced[org.CollectionName] = true
		if present[org.CollectionName] {
			continue
		}

		// a Delete between its partition drop and its row delete looks the
		// same as a lost partition until the row is gone
		if _, err := s.orgs.FindByID(ctx, org.ID); err != nil {
			if errors.Is(err, domain.ErrOrganizationNotFound) {
				s.logger.Info("organization removed during reconciliation", "organization", org.OrganizationName)
				continue
			}
			return err
		}

		report.MissingPartitions = append(report.MissingPartitions, org.CollectionName)
		if s.dryRun {
			s.logger.Info("would recreate partition (dry run)", "organization", org.OrganizationName, "partition", org.CollectionName)
			continue
		}
		if err := s.partitions.Create(ctx, org.CollectionName); err != nil {
			return err
		}
		s.logger.Warn("recreated missing partition", "organization", org.OrganizationName, "partition", org.CollectionName)
	}

	for _, name := range existing {
		if referenced[name] {
			continue
		}

		report.OrphanPartitions = append(report.OrphanPartitions, name)
		if s.dryRun || !s.dropOrphans {
			s.logger.Info("orphan partition found", "partition", name)
			continue
		}
		if err := s.partitions.Delete(ctx, name); err != nil {
			return err
		}
		s.logger.Warn("dropped orphan partition", "partition", name)
	}

	return nil
}

func (s *ReconciliationService) reconcileAdmins(ctx context.Context, report *ReconcileReport) error {
	admins, err := s.admins.ListUnlinked(ctx, time.Now().UTC().Add(-s.adminGrace))
	if err != nil {
		return err
	}

	for _, admin := range admins {
		report.UnlinkedAdmins = append(report.UnlinkedAdmins, admin.ID)
		if s.dryRun {
			s.logger.Info("would delete unlinked admin (dry run)", "admin_id", admin.ID, "email", admin.Email)
			continue
		}
		if err := s.admins.Delete(ctx, admin.ID); err != nil {
			return err
		}
		s.logger.Warn("deleted unlinked admin", "admin_id", admin.ID, "email", admin.Email)
	}

	return nil
}
