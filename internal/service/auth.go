// internal/service/auth.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dangerclosesec/orgmgr/internal/audit"
	"github.com/dangerclosesec/orgmgr/internal/auth"
	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/model"
	"github.com/dangerclosesec/orgmgr/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AuthService exchanges admin credentials for access tokens and resolves
// tokens back to admins.
type AuthService struct {
	adminRepo      repository.AdminRepositoryIface
	passwordHasher *auth.PasswordHasher
	tokenManager   *auth.TokenManager
	auditor        audit.Logger
	validate       *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	adminRepo repository.AdminRepositoryIface,
	passwordHasher *auth.PasswordHasher,
	tokenManager *auth.TokenManager,
	auditor audit.Logger,
) *AuthService {
	if auditor == nil {
		auditor = &audit.NoOpLogger{}
	}
	return &AuthService{
		adminRepo:      adminRepo,
		passwordHasher: passwordHasher,
		tokenManager:   tokenManager,
		auditor:        auditor,
		validate:       newValidator(),
	}
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginOutput struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	AdminID          string    `json:"admin_id"`
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	Email            string    `json:"email"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Authenticate verifies an admin's email and password and issues a token.
// Unknown email and wrong password fail the same way. An inactive admin is
// only told so after presenting the right password.
func (s *AuthService) Authenticate(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	admin, err := s.adminRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrAdminNotFound) {
			return nil, fmt.Errorf("authenticating admin: %w", err)
		}
		// keep the unknown-email path as slow as a real verification
		s.passwordHasher.Verify(input.Password, s.dummyDigest())
		s.recordLogin(ctx, nil, false, "unknown email")
		return nil, domain.ErrInvalidCredentials
	}

	if !s.passwordHasher.Verify(input.Password, admin.HashedPassword) {
		s.recordLogin(ctx, admin, false, "password mismatch")
		return nil, domain.ErrInvalidCredentials
	}

	if !admin.IsActive {
		s.recordLogin(ctx, admin, false, "inactive admin")
		return nil, domain.ErrAdminInactive
	}

	identity := auth.Identity{
		AdminID:          admin.ID.String(),
		Email:            admin.Email,
		OrganizationName: admin.OrganizationName,
	}
	if admin.OrganizationID != nil {
		identity.OrganizationID = admin.OrganizationID.String()
	}

	token, expiresAt, err := s.tokenManager.Generate(identity)
	if err != nil {
		return nil, fmt.Errorf("authenticating admin: %w", err)
	}

	slog.InfoContext(ctx, "admin logged in", "admin_id", admin.ID, "organization", admin.OrganizationName)
	s.recordLogin(ctx, admin, true, "")

	return &LoginOutput{
		AccessToken:      token,
		TokenType:        "bearer",
		AdminID:          identity.AdminID,
		OrganizationID:   identity.OrganizationID,
		OrganizationName: identity.OrganizationName,
		Email:            identity.Email,
		ExpiresAt:        expiresAt,
	}, nil
}

// ResolveToken validates a bearer token and loads the admin it was issued
// to. A token whose admin has been deleted or deactivated is rejected.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (*model.Admin, *auth.Claims, error) {
	claims, err := s.tokenManager.Validate(token)
	if err != nil {
		return nil, nil, err
	}

	adminID, err := uuid.Parse(claims.AdminID())
	if err != nil {
		return nil, nil, domain.ErrInvalidToken
	}

	admin, err := s.adminRepo.FindByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, domain.ErrAdminNotFound) {
			return nil, nil, domain.ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("resolving token: %w", err)
	}

	if !admin.IsActive {
		return nil, nil, domain.ErrInvalidToken
	}

	return admin, claims, nil
}

func (s *AuthService) dummyDigest() string {
	s.dummyOnce.Do(func() {
		hash, err := s.passwordHasher.Hash(uuid.NewString())
		if err != nil {
			slog.Error("failed to prepare dummy password digest", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *AuthService) recordLogin(ctx context.Context, admin *model.Admin, ok bool, detail string) {
	event := audit.Event{
		Action: model.ActionAdminLogin,
		Result: ok,
		Detail: detail,
	}
	if !ok {
		event.Action = model.ActionAdminLoginFailed
	}
	if admin != nil {
		event.AdminID = admin.ID.String()
		event.OrganizationName = admin.OrganizationName
	}
	audit.Record(ctx, s.auditor, event)
}
