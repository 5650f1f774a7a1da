package email

import (
	"context"

	"github.com/dangerclosesec/orgmgr/internal/model"
)

// Notifier tells organization admins about lifecycle changes.
type Notifier interface {
	OrganizationCreated(ctx context.Context, org *model.Organization) error
	CredentialsChanged(ctx context.Context, org *model.Organization) error
}

// NoOpNotifier is used when no email provider is configured.
type NoOpNotifier struct{}

func (NoOpNotifier) OrganizationCreated(ctx context.Context, org *model.Organization) error {
	return nil
}

func (NoOpNotifier) CredentialsChanged(ctx context.Context, org *model.Organization) error {
	return nil
}

type organizationTemplateData struct {
	OrganizationName string
	Email            string
	AppName          string
}

func (s *Service) OrganizationCreated(ctx context.Context, org *model.Organization) error {
	return s.SendEmail(EmailData{
		To:           org.AdminEmail,
		Subject:      "Your organization " + org.OrganizationName + " is ready",
		TemplateName: "organization_created",
		TemplateData: s.templateData(org),
	})
}

func (s *Service) CredentialsChanged(ctx context.Context, org *model.Organization) error {
	return s.SendEmail(EmailData{
		To:           org.AdminEmail,
		Subject:      "Admin credentials changed for " + org.OrganizationName,
		TemplateName: "credentials_changed",
		TemplateData: s.templateData(org),
	})
}

func (s *Service) templateData(org *model.Organization) organizationTemplateData {
	return organizationTemplateData{
		OrganizationName: org.OrganizationName,
		Email:            org.AdminEmail,
		AppName:          s.config.App.Name,
	}
}
