// internal/service/organization.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dangerclosesec/orgmgr/internal/audit"
	"github.com/dangerclosesec/orgmgr/internal/auth"
	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/email"
	"github.com/dangerclosesec/orgmgr/internal/model"
	"github.com/dangerclosesec/orgmgr/internal/partition"
	"github.com/dangerclosesec/orgmgr/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// OrganizationService runs the organization lifecycle: it is the only writer
// of organizations, admins and partitions.
type OrganizationService struct {
	orgRepo        repository.OrganizationRepositoryIface
	adminRepo      repository.AdminRepositoryIface
	partitions     partition.ManagerIface
	passwordHasher *auth.PasswordHasher
	notifier       email.Notifier
	auditor        audit.Logger
	validate       *validator.Validate
}

func NewOrganizationService(
	orgRepo repository.OrganizationRepositoryIface,
	adminRepo repository.AdminRepositoryIface,
	partitions partition.ManagerIface,
	passwordHasher *auth.PasswordHasher,
	notifier email.Notifier,
	auditor audit.Logger,
) *OrganizationService {
	if notifier == nil {
		notifier = email.NoOpNotifier{}
	}
	if auditor == nil {
		auditor = &audit.NoOpLogger{}
	}
	return &OrganizationService{
		orgRepo:        orgRepo,
		adminRepo:      adminRepo,
		partitions:     partitions,
		passwordHasher: passwordHasher,
		notifier:       notifier,
		auditor:        auditor,
		validate:       newValidator(),
	}
}

type CreateOrganizationInput struct {
	OrganizationName string `json:"organization_name" validate:"required,orgname"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
}

// createState tracks what Create has written so far, for compensation.
type createState struct {
	collectionName string
	admin          *model.Admin
	org            *model.Organization
}

// Create registers an organization: its partition, its admin and the
// directory entry. If any step after the partition fails, the steps already
// done are undone on a best-effort basis.
func (s *OrganizationService) Create(ctx context.Context, input CreateOrganizationInput) (*model.Organization, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	name := strings.TrimSpace(input.OrganizationName)
	collectionName := partition.DeriveName(name)

	if err := s.ensureNameAvailable(ctx, name, collectionName); err != nil {
		return nil, err
	}

	if err := s.ensureEmailAvailable(ctx, input.Email, uuid.Nil); err != nil {
		if domain.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrCreateFailed, err)
	}

	if err := s.partitions.Create(ctx, collectionName); err != nil {
		slog.ErrorContext(ctx, "partition creation failed", "organization", name, "partition", collectionName, "error", err)
		s.recordCreate(ctx, name, "", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrCreateFailed, err)
	}

	state := &createState{collectionName: collectionName}

	hashedPassword, err := s.passwordHasher.Hash(input.Password)
	if err != nil {
		return nil, s.abortCreate(ctx, state, fmt.Errorf("hashing password: %w", err))
	}

	now := time.Now().UTC()
	admin := &model.Admin{
		ID:               uuid.New(),
		Email:            repository.NormalizeEmail(input.Email),
		HashedPassword:   hashedPassword,
		OrganizationName: name,
		CreatedAt:        now,
		UpdatedAt:        now,
		IsActive:         true,
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, s.abortCreate(ctx, state, err)
	}
	state.admin = admin

	org := &model.Organization{
		ID:               uuid.New(),
		OrganizationName: name,
		CollectionName:   collectionName,
		AdminEmail:       admin.Email,
		AdminID:          admin.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
		IsActive:         true,
	}
	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, s.abortCreate(ctx, state, err)
	}
	state.org = org

	if err := s.adminRepo.SetOrganization(ctx, admin.ID, org.ID); err != nil {
		return nil, s.abortCreate(ctx, state, fmt.Errorf("linking admin to organization: %w", err))
	}
	orgID := org.ID
	admin.OrganizationID = &orgID

	slog.InfoContext(ctx, "organization created", "organization", name, "partition", collectionName, "admin_id", admin.ID)
	s.recordCreate(ctx, name, admin.ID.String(), nil)

	if err := s.notifier.OrganizationCreated(ctx, org); err != nil {
		slog.WarnContext(ctx, "organization created email not sent", "organization", name, "error", err)
	}

	return org, nil
}

func (s *OrganizationService) ensureNameAvailable(ctx context.Context, name, collectionName string) error {
	_, err := s.orgRepo.FindByName(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", domain.ErrOrganizationExists, name)
	case !errors.Is(err, domain.ErrOrganizationNotFound):
		return fmt.Errorf("%w: checking organization name: %w", domain.ErrCreateFailed, err)
	}

	// Names that differ only in case, spaces or hyphens share a partition.
	_, err = s.orgRepo.FindByCollectionName(ctx, collectionName)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", domain.ErrOrganizationExists, name)
	case !errors.Is(err, domain.ErrOrganizationNotFound):
		return fmt.Errorf("%w: checking collection name: %w", domain.ErrCreateFailed, err)
	}

	return nil
}

// ensureEmailAvailable fails with ErrEmailAlreadyExists when email belongs to
// an admin other than owner.
func (s *OrganizationService) ensureEmailAvailable(ctx context.Context, email string, owner uuid.UUID) error {
	existing, err := s.adminRepo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrAdminNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("checking admin email: %w", err)
	case existing.ID == owner:
		return nil
	default:
		return fmt.Errorf("%w: %s", domain.ErrEmailAlreadyExists, repository.NormalizeEmail(email))
	}
}

// abortCreate undoes a partial Create. Compensation is not transactional and
// is not retried: a failure here is logged and leaves data for an operator.
func (s *OrganizationService) abortCreate(ctx context.Context, state *createState, cause error) error {
	// cleanup must run even when the request context is already cancelled
	cctx := context.WithoutCancel(ctx)

	if state.org != nil {
		if err := s.orgRepo.Delete(cctx, state.org.ID); err != nil {
			slog.ErrorContext(ctx, "compensation failed: organization record left behind",
				"organization_id", state.org.ID, "error", err)
		}
	}

	if state.admin != nil {
		if err := s.adminRepo.Delete(cctx, state.admin.ID); err != nil {
			slog.ErrorContext(ctx, "compensation failed: admin record left behind",
				"admin_id", state.admin.ID, "error", err)
		}
	}

	if err := s.partitions.Delete(cctx, state.collectionName); err != nil {
		slog.ErrorContext(ctx, "compensation failed: partition left behind",
			"partition", state.collectionName, "error", err)
	}

	name := ""
	if state.admin != nil {
		name = state.admin.OrganizationName
	}
	slog.ErrorContext(ctx, "organization creation rolled back", "partition", state.collectionName, "error", cause)
	s.recordCreate(cctx, name, "", cause)

	// a unique index beat the pre-check: still a conflict for the caller
	if domain.IsConflict(cause) {
		return cause
	}
	return fmt.Errorf("%w: %w", domain.ErrCreateFailed, cause)
}

func (s *OrganizationService) recordCreate(ctx context.Context, name, adminID string, err error) {
	event := audit.Event{
		Action:           model.ActionOrganizationCreate,
		Result:           err == nil,
		OrganizationName: name,
		AdminID:          adminID,
	}
	if err != nil {
		event.Detail = err.Error()
	}
	audit.Record(ctx, s.auditor, event)
}

// Get looks an organization up by name.
func (s *OrganizationService) Get(ctx context.Context, organizationName string) (*model.Organization, error) {
	org, err := s.orgRepo.FindByName(ctx, strings.TrimSpace(organizationName))
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting organization: %w", err)
	}
	return org, nil
}

type UpdateOrganizationInput struct {
	OrganizationName string    `json:"organization_name" validate:"required"`
	Email            string    `json:"email" validate:"required,email"`
	Password         string    `json:"password" validate:"required,min=8"`
	ActingAdminID    uuid.UUID `json:"-"`
}

// Update replaces the admin credentials of an organization. Only the linked
// admin may do so. Partial failures are not rolled back, and tokens issued
// before the change stay valid until they expire.
func (s *OrganizationService) Update(ctx context.Context, input UpdateOrganizationInput) (*model.Organization, error) {
	// ownership is decided before the payload is looked at
	org, err := s.findOwned(ctx, input.OrganizationName, input.ActingAdminID)
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) || errors.Is(err, domain.ErrForbidden) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpdateFailed, err)
	}

	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	if err := s.ensureEmailAvailable(ctx, input.Email, org.AdminID); err != nil {
		if domain.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpdateFailed, err)
	}

	hashedPassword, err := s.passwordHasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing password: %w", domain.ErrUpdateFailed, err)
	}

	newEmail := repository.NormalizeEmail(input.Email)
	if err := s.adminRepo.UpdateCredentials(ctx, org.AdminID, newEmail, hashedPassword); err != nil {
		s.recordUpdate(ctx, org, err)
		if domain.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpdateFailed, err)
	}

	if err := s.orgRepo.UpdateAdminEmail(ctx, org.ID, newEmail); err != nil {
		slog.ErrorContext(ctx, "admin updated but organization email not refreshed",
			"organization", org.OrganizationName, "error", err)
		s.recordUpdate(ctx, org, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrUpdateFailed, err)
	}

	refreshed, err := s.orgRepo.FindByID(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: reloading organization: %w", domain.ErrUpdateFailed, err)
	}

	slog.InfoContext(ctx, "organization credentials updated", "organization", org.OrganizationName, "admin_id", org.AdminID)
	s.recordUpdate(ctx, refreshed, nil)

	if err := s.notifier.CredentialsChanged(ctx, refreshed); err != nil {
		slog.WarnContext(ctx, "credentials changed email not sent", "organization", org.OrganizationName, "error", err)
	}

	return refreshed, nil
}

func (s *OrganizationService) recordUpdate(ctx context.Context, org *model.Organization, err error) {
	event := audit.Event{
		Action:           model.ActionOrganizationUpdate,
		Result:           err == nil,
		OrganizationName: org.OrganizationName,
		AdminID:          org.AdminID.String(),
	}
	if err != nil {
		event.Detail = err.Error()
	}
	audit.Record(ctx, s.auditor, event)
}

// Delete tears down an organization: partition, admin, then the directory
// entry. It stops at the first failure and does not restore what was already
// removed.
func (s *OrganizationService) Delete(ctx context.Context, organizationName string, actingAdminID uuid.UUID) error {
	org, err := s.findOwned(ctx, organizationName, actingAdminID)
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) || errors.Is(err, domain.ErrForbidden) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrDeleteFailed, err)
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"deleting partition", func() error { return s.partitions.Delete(ctx, org.CollectionName) }},
		{"deleting admin", func() error { return s.adminRepo.Delete(ctx, org.AdminID) }},
		{"deleting organization record", func() error { return s.orgRepo.Delete(ctx, org.ID) }},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			slog.ErrorContext(ctx, "organization teardown incomplete",
				"organization", org.OrganizationName, "step", step.name, "error", err)
			s.recordDelete(ctx, org, err)
			return fmt.Errorf("%w: %s: %w", domain.ErrDeleteFailed, step.name, err)
		}
	}

	slog.InfoContext(ctx, "organization deleted", "organization", org.OrganizationName, "partition", org.CollectionName)
	s.recordDelete(ctx, org, nil)
	return nil
}

func (s *OrganizationService) recordDelete(ctx context.Context, org *model.Organization, err error) {
	event := audit.Event{
		Action:           model.ActionOrganizationDelete,
		Result:           err == nil,
		OrganizationName: org.OrganizationName,
		AdminID:          org.AdminID.String(),
	}
	if err != nil {
		event.Detail = err.Error()
	}
	audit.Record(ctx, s.auditor, event)
}

// findOwned loads the organization and checks that actingAdminID owns it.
func (s *OrganizationService) findOwned(ctx context.Context, organizationName string, actingAdminID uuid.UUID) (*model.Organization, error) {
	org, err := s.orgRepo.FindByName(ctx, strings.TrimSpace(organizationName))
	if err != nil {
		return nil, err
	}

	if org.AdminID != actingAdminID {
		slog.WarnContext(ctx, "ownership check failed",
			"organization", org.OrganizationName, "acting_admin_id", actingAdminID)
		return nil, domain.ErrForbidden
	}

	return org, nil
}
