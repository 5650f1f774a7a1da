// internal/handler/organization.go
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/middleware"
	"github.com/dangerclosesec/orgmgr/internal/model"
	"github.com/dangerclosesec/orgmgr/internal/service"
	"github.com/google/uuid"
)

// OrganizationLifecycle is the part of service.OrganizationService the
// handlers use.
type OrganizationLifecycle interface {
	Create(ctx context.Context, input service.CreateOrganizationInput) (*model.Organization, error)
	Get(ctx context.Context, organizationName string) (*model.Organization, error)
	Update(ctx context.Context, input service.UpdateOrganizationInput) (*model.Organization, error)
	Delete(ctx context.Context, organizationName string, actingAdminID uuid.UUID) error
}

type OrganizationHandler struct {
	orgService OrganizationLifecycle
}

func NewOrganizationHandler(orgService OrganizationLifecycle) *OrganizationHandler {
	return &OrganizationHandler{orgService: orgService}
}

type OrganizationResponse struct {
	BaseResponse
	*model.Organization
}

func (h *OrganizationHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var input service.CreateOrganizationInput
	if !decodeJSON(w, r, &input) {
		return
	}

	org, err := h.orgService.Create(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, r, "organization create", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, OrganizationResponse{
		BaseResponse: BaseResponse{Ok: true},
		Organization: org,
	})
}

func (h *OrganizationHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("organization_name"))
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "organization_name is required")
		return
	}

	org, err := h.orgService.Get(r.Context(), name)
	if err != nil {
		respondWithServiceError(w, r, "organization get", err)
		return
	}

	respondWithJSON(w, http.StatusOK, OrganizationResponse{
		BaseResponse: BaseResponse{Ok: true},
		Organization: org,
	})
}

func (h *OrganizationHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.AdminFromContext(r.Context())
	if !ok {
		respondWithServiceError(w, r, "organization update", domain.ErrInvalidToken)
		return
	}

	var input service.UpdateOrganizationInput
	if !decodeJSON(w, r, &input) {
		return
	}
	input.ActingAdminID = admin.ID

	org, err := h.orgService.Update(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, r, "organization update", err)
		return
	}

	respondWithJSON(w, http.StatusOK, OrganizationResponse{
		BaseResponse: BaseResponse{Ok: true},
		Organization: org,
	})
}

func (h *OrganizationHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.AdminFromContext(r.Context())
	if !ok {
		respondWithServiceError(w, r, "organization delete", domain.ErrInvalidToken)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("organization_name"))
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "organization_name is required")
		return
	}

	if err := h.orgService.Delete(r.Context(), name, admin.ID); err != nil {
		respondWithServiceError(w, r, "organization delete", err)
		return
	}

	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		slog.InfoContext(r.Context(), "organization deleted",
			"organization", name,
			"admin_id", admin.ID,
			"token_organization", claims.OrganizationName,
			"token_expires_at", claims.ExpiresAt,
		)
	}

	respondWithJSON(w, http.StatusOK, MessageResponse{
		BaseResponse: BaseResponse{Ok: true},
		Message:      fmt.Sprintf("Organization '%s' deleted successfully", name),
	})
}
