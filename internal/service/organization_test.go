package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dangerclosesec/orgmgr/internal/audit"
	"github.com/dangerclosesec/orgmgr/internal/auth"
	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/mocks"
	"github.com/dangerclosesec/orgmgr/internal/model"
	"github.com/dangerclosesec/orgmgr/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingNotifier struct {
	mu      sync.Mutex
	created []string
	changed []string
}

func (n *recordingNotifier) OrganizationCreated(ctx context.Context, org *model.Organization) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, org.OrganizationName)
	return nil
}

func (n *recordingNotifier) CredentialsChanged(ctx context.Context, org *model.Organization) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, org.AdminEmail)
	return errors.New("provider unavailable")
}

type testEnv struct {
	store    *memStore
	orgs     *service.OrganizationService
	auth     *service.AuthService
	notifier *recordingNotifier
}

func newTestEnv() *testEnv {
	store := newMemStore()
	hasher := auth.NewPasswordHasher()
	notifier := &recordingNotifier{}
	return &testEnv{
		store:    store,
		notifier: notifier,
		orgs: service.NewOrganizationService(
			memOrgRepo{store},
			memAdminRepo{store},
			memPartitions{store},
			hasher,
			notifier,
			memAuditor{store},
		),
		auth: service.NewAuthService(
			memAdminRepo{store},
			hasher,
			auth.NewTokenManager("test_secret", time.Hour),
			memAuditor{store},
		),
	}
}

func TestOrganizationLifecycle(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	org, err := env.orgs.Create(ctx, service.CreateOrganizationInput{
		OrganizationName: "Acme Co",
		Email:            "admin@acme.io",
		Password:         "s3cretpass",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Co", org.OrganizationName)
	assert.Equal(t, "org_acme_co", org.CollectionName)
	assert.Equal(t, "admin@acme.io", org.AdminEmail)
	assert.True(t, env.store.hasPartition("org_acme_co"))
	assert.Equal(t, []string{"Acme Co"}, env.notifier.created)

	admin, err := memAdminRepo{env.store}.FindByID(ctx, org.AdminID)
	require.NoError(t, err)
	require.NotNil(t, admin.OrganizationID)
	assert.Equal(t, org.ID, *admin.OrganizationID)

	t.Run("login issues a token for the admin", func(t *testing.T) {
		out, err := env.auth.Authenticate(ctx, service.LoginInput{Email: "admin@acme.io", Password: "s3cretpass"})
		require.NoError(t, err)
		assert.Equal(t, "bearer", out.TokenType)
		assert.Equal(t, org.AdminID.String(), out.AdminID)
		assert.Equal(t, org.ID.String(), out.OrganizationID)
		assert.Equal(t, "Acme Co", out.OrganizationName)

		resolved, claims, err := env.auth.ResolveToken(ctx, out.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, org.AdminID, resolved.ID)
		assert.Equal(t, "admin@acme.io", claims.Email)
	})

	t.Run("get is case insensitive", func(t *testing.T) {
		got, err := env.orgs.Get(ctx, "acme co")
		require.NoError(t, err)
		assert.Equal(t, org.ID, got.ID)
	})

	t.Run("names sharing a partition conflict", func(t *testing.T) {
		for _, name := range []string{"Acme Co", "acme-co", "ACME_CO"} {
			_, err := env.orgs.Create(ctx, service.CreateOrganizationInput{
				OrganizationName: name,
				Email:            "someone@else.io",
				Password:         "s3cretpass",
			})
			assert.ErrorIs(t, err, domain.ErrOrganizationExists, name)
		}
		orgs, admins, partitions := env.store.counts()
		assert.Equal(t, 1, orgs)
		assert.Equal(t, 1, admins)
		assert.Equal(t, 1, partitions)
	})

	t.Run("admin email is unique across organizations", func(t *testing.T) {
		_, err := env.orgs.Create(ctx, service.CreateOrganizationInput{
			OrganizationName: "Other Org",
			Email:            "Admin@Acme.io",
			Password:         "s3cretpass",
		})
		assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
		assert.False(t, env.store.hasPartition("org_other_org"))
	})

	other, err := env.orgs.Create(ctx, service.CreateOrganizationInput{
		OrganizationName: "Beta",
		Email:            "root@beta.io",
		Password:         "betapass1",
	})
	require.NoError(t, err)

	t.Run("other admins cannot update or delete", func(t *testing.T) {
		_, err := env.orgs.Update(ctx, service.UpdateOrganizationInput{
			OrganizationName: "Acme Co",
			Email:            "evil@beta.io",
			Password:         "whatever1",
			ActingAdminID:    other.AdminID,
		})
		assert.ErrorIs(t, err, domain.ErrForbidden)

		_, err = env.orgs.Update(ctx, service.UpdateOrganizationInput{
			OrganizationName: "Acme Co",
			Email:            "not-an-email",
			Password:         "x",
			ActingAdminID:    other.AdminID,
		})
		assert.ErrorIs(t, err, domain.ErrForbidden, "invalid payloads are still forbidden")

		err = env.orgs.Delete(ctx, "Acme Co", other.AdminID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.True(t, env.store.hasPartition("org_acme_co"))
	})

	t.Run("update cannot take another admin's email", func(t *testing.T) {
		_, err := env.orgs.Update(ctx, service.UpdateOrganizationInput{
			OrganizationName: "Acme Co",
			Email:            "root@beta.io",
			Password:         "newpass12",
			ActingAdminID:    org.AdminID,
		})
		assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
	})

	t.Run("update replaces credentials", func(t *testing.T) {
		updated, err := env.orgs.Update(ctx, service.UpdateOrganizationInput{
			OrganizationName: "Acme Co",
			Email:            "ops@acme.io",
			Password:         "newpass12",
			ActingAdminID:    org.AdminID,
		})
		require.NoError(t, err)
		assert.Equal(t, "ops@acme.io", updated.AdminEmail)
		assert.Equal(t, org.CollectionName, updated.CollectionName)
		assert.Equal(t, []string{"ops@acme.io"}, env.notifier.changed)

		_, err = env.auth.Authenticate(ctx, service.LoginInput{Email: "admin@acme.io", Password: "s3cretpass"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

		_, err = env.auth.Authenticate(ctx, service.LoginInput{Email: "ops@acme.io", Password: "newpass12"})
		assert.NoError(t, err)
	})

	t.Run("update keeping the same email succeeds", func(t *testing.T) {
		_, err := env.orgs.Update(ctx, service.UpdateOrganizationInput{
			OrganizationName: "Acme Co",
			Email:            "ops@acme.io",
			Password:         "another12",
			ActingAdminID:    org.AdminID,
		})
		assert.NoError(t, err)
	})

	t.Run("delete removes everything", func(t *testing.T) {
		require.NoError(t, env.orgs.Delete(ctx, "Acme Co", org.AdminID))

		_, err := env.orgs.Get(ctx, "Acme Co")
		assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
		assert.False(t, env.store.hasPartition("org_acme_co"))

		_, err = env.auth.Authenticate(ctx, service.LoginInput{Email: "ops@acme.io", Password: "another12"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

		err = env.orgs.Delete(ctx, "Acme Co", org.AdminID)
		assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)

		orgs, admins, partitions := env.store.counts()
		assert.Equal(t, 1, orgs)
		assert.Equal(t, 1, admins)
		assert.Equal(t, 1, partitions)
	})

	t.Run("the name can be reused after delete", func(t *testing.T) {
		again, err := env.orgs.Create(ctx, service.CreateOrganizationInput{
			OrganizationName: "Acme Co",
			Email:            "admin@acme.io",
			Password:         "s3cretpass",
		})
		require.NoError(t, err)
		assert.NotEqual(t, org.ID, again.ID)
	})
}

func TestGetOrganizationNotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.orgs.Get(context.Background(), "Nope")
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}

func TestCreateCompensation(t *testing.T) {
	hasher := auth.NewPasswordHasher()
	input := service.CreateOrganizationInput{
		OrganizationName: "Acme Co",
		Email:            "admin@acme.io",
		Password:         "s3cretpass",
	}

	expectAvailable := func(orgRepo *mocks.MockOrganizationRepositoryIface, adminRepo *mocks.MockAdminRepositoryIface) {
		orgRepo.EXPECT().FindByName(gomock.Any(), "Acme Co").Return(nil, domain.ErrOrganizationNotFound)
		orgRepo.EXPECT().FindByCollectionName(gomock.Any(), "org_acme_co").Return(nil, domain.ErrOrganizationNotFound)
		adminRepo.EXPECT().FindByEmail(gomock.Any(), "admin@acme.io").Return(nil, domain.ErrAdminNotFound)
	}

	t.Run("partition failure writes nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		orgRepo := mocks.NewMockOrganizationRepositoryIface(ctrl)
		adminRepo := mocks.NewMockAdminRepositoryIface(ctrl)
		partitions := mocks.NewMockManagerIface(ctrl)

		expectAvailable(orgRepo, adminRepo)
		partitions.EXPECT().Create(gomock.Any(), "org_acme_co").Return(errors.New("disk full"))

		svc := service.NewOrganizationService(orgRepo, adminRepo, partitions, hasher, nil, nil)
		_, err := svc.Create(context.Background(), input)
		assert.ErrorIs(t, err, domain.ErrCreateFailed)
	})

	t.Run("admin insert failure drops the partition", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		orgRepo := mocks.NewMockOrganizationRepositoryIface(ctrl)
		adminRepo := mocks.NewMockAdminRepositoryIface(ctrl)
		partitions := mocks.NewMockManagerIface(ctrl)

		expectAvailable(orgRepo, adminRepo)
		gomock.InOrder(
			partitions.EXPECT().Create(gomock.Any(), "org_acme_co").Return(nil),
			adminRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset")),
			partitions.EXPECT().Delete(gomock.Any(), "org_acme_co").Return(nil),
		)

		svc := service.NewOrganizationService(orgRepo, adminRepo, partitions, hasher, nil, nil)
		_, err := svc.Create(context.Background(), input)
		assert.ErrorIs(t, err, domain.ErrCreateFailed)
	})

	t.Run("lost race on the name index stays a conflict", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		orgRepo := mocks.NewMockOrganizationRepositoryIface(ctrl)
		adminRepo := mocks.NewMockAdminRepositoryIface(ctrl)
		partitions := mocks.NewMockManagerIface(ctrl)

		var adminID uuid.UUID
		expectAvailable(orgRepo, adminRepo)
		gomock.InOrder(
			partitions.EXPECT().Create(gomock.Any(), "org_acme_co").Return(nil),
			adminRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, admin *model.Admin) error {
					adminID = admin.ID
					return nil
				}),
			orgRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(domain.ErrOrganizationExists),
			adminRepo.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, id uuid.UUID) error {
					assert.Equal(t, adminID, id)
					return nil
				}),
			partitions.EXPECT().Delete(gomock.Any(), "org_acme_co").Return(nil),
		)

		svc := service.NewOrganizationService(orgRepo, adminRepo, partitions, hasher, nil, nil)
		_, err := svc.Create(context.Background(), input)
		assert.ErrorIs(t, err, domain.ErrOrganizationExists)
		assert.NotErrorIs(t, err, domain.ErrCreateFailed)
	})

	t.Run("back-patch failure removes the organization record too", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		orgRepo := mocks.NewMockOrganizationRepositoryIface(ctrl)
		adminRepo := mocks.NewMockAdminRepositoryIface(ctrl)
		partitions := mocks.NewMockManagerIface(ctrl)

		var orgID uuid.UUID
		expectAvailable(orgRepo, adminRepo)
		gomock.InOrder(
			partitions.EXPECT().Create(gomock.Any(), "org_acme_co").Return(nil),
			adminRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
			orgRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, org *model.Organization) error {
					orgID = org.ID
					return nil
				}),
			adminRepo.EXPECT().SetOrganization(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("timeout")),
			orgRepo.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, id uuid.UUID) error {
					assert.Equal(t, orgID, id)
					return nil
				}),
			adminRepo.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil),
			partitions.EXPECT().Delete(gomock.Any(), "org_acme_co").Return(nil),
		)

		svc := service.NewOrganizationService(orgRepo, adminRepo, partitions, hasher, nil, nil)
		_, err := svc.Create(context.Background(), input)
		assert.ErrorIs(t, err, domain.ErrCreateFailed)
	})

	t.Run("compensation failures do not hide the cause", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		orgRepo := mocks.NewMockOrganizationRepositoryIface(ctrl)
		adminRepo := mocks.NewMockAdminRepositoryIface(ctrl)
		partitions := mocks.NewMockManagerIface(ctrl)

		cause := errors.New("connection reset")
		expectAvailable(orgRepo, adminRepo)
		partitions.EXPECT().Create(gomock.Any(), "org_acme_co").Return(nil)
		adminRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		orgRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(cause)
		adminRepo.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(errors.New("still down"))
		partitions.EXPECT().Delete(gomock.Any(), "org_acme_co").Return(errors.New("still down"))

		svc := service.NewOrganizationService(orgRepo, adminRepo, partitions, hasher, nil, nil)
		_, err := svc.Create(context.Background(), input)
		assert.ErrorIs(t, err, domain.ErrCreateFailed)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("compensation runs after the request is cancelled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		orgRepo := mocks.NewMockOrganizationRepositoryIface(ctrl)
		adminRepo := mocks.NewMockAdminRepositoryIface(ctrl)
		partitions := mocks.NewMockManagerIface(ctrl)

		ctx, cancel := context.WithCancel(context.Background())
		expectAvailable(orgRepo, adminRepo)
		partitions.EXPECT().Create(gomock.Any(), "org_acme_co").Return(nil)
		adminRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, *model.Admin) error {
				cancel()
				return context.Canceled
			})
		partitions.EXPECT().Delete(gomock.Any(), "org_acme_co").DoAndReturn(
			func(ctx context.Context, _ string) error {
				assert.NoError(t, ctx.Err())
				return nil
			})

		svc := service.NewOrganizationService(orgRepo, adminRepo, partitions, hasher, nil, nil)
		_, err := svc.Create(ctx, input)
		assert.ErrorIs(t, err, domain.ErrCreateFailed)
	})
}

func TestCreatePrecheckFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	orgRepo := mocks.NewMockOrganizationRepositoryIface(ctrl)
	adminRepo := mocks.NewMockAdminRepositoryIface(ctrl)
	partitions := mocks.NewMockManagerIface(ctrl)

	orgRepo.EXPECT().FindByName(gomock.Any(), "Acme Co").Return(nil, errors.New("connection refused"))

	svc := service.NewOrganizationService(orgRepo, adminRepo, partitions, auth.NewPasswordHasher(), nil, nil)
	_, err := svc.Create(context.Background(), service.CreateOrganizationInput{
		OrganizationName: "  Acme Co ",
		Email:            "admin@acme.io",
		Password:         "s3cretpass",
	})
	assert.ErrorIs(t, err, domain.ErrCreateFailed)
	assert.False(t, domain.IsConflict(err))
}

func TestDeleteStopsAtFirstFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	orgRepo := mocks.NewMockOrganizationRepositoryIface(ctrl)
	adminRepo := mocks.NewMockAdminRepositoryIface(ctrl)
	partitions := mocks.NewMockManagerIface(ctrl)

	adminID := uuid.New()
	org := &model.Organization{
		ID:               uuid.New(),
		OrganizationName: "Acme Co",
		CollectionName:   "org_acme_co",
		AdminID:          adminID,
	}

	gomock.InOrder(
		orgRepo.EXPECT().FindByName(gomock.Any(), "Acme Co").Return(org, nil),
		partitions.EXPECT().Delete(gomock.Any(), "org_acme_co").Return(nil),
		adminRepo.EXPECT().Delete(gomock.Any(), adminID).Return(errors.New("deadlock detected")),
	)

	svc := service.NewOrganizationService(orgRepo, adminRepo, partitions, auth.NewPasswordHasher(), nil, nil)
	err := svc.Delete(context.Background(), "Acme Co", adminID)
	assert.ErrorIs(t, err, domain.ErrDeleteFailed)
}

func TestUpdateOrganizationEmailRefreshFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	orgRepo := mocks.NewMockOrganizationRepositoryIface(ctrl)
	adminRepo := mocks.NewMockAdminRepositoryIface(ctrl)
	partitions := mocks.NewMockManagerIface(ctrl)

	adminID := uuid.New()
	org := &model.Organization{
		ID:               uuid.New(),
		OrganizationName: "Acme Co",
		CollectionName:   "org_acme_co",
		AdminID:          adminID,
	}

	gomock.InOrder(
		orgRepo.EXPECT().FindByName(gomock.Any(), "Acme Co").Return(org, nil),
		adminRepo.EXPECT().FindByEmail(gomock.Any(), "new@acme.io").Return(nil, domain.ErrAdminNotFound),
		adminRepo.EXPECT().UpdateCredentials(gomock.Any(), adminID, "new@acme.io", gomock.Any()).Return(nil),
		orgRepo.EXPECT().UpdateAdminEmail(gomock.Any(), org.ID, "new@acme.io").Return(errors.New("timeout")),
	)

	svc := service.NewOrganizationService(orgRepo, adminRepo, partitions, auth.NewPasswordHasher(), nil, nil)
	_, err := svc.Update(context.Background(), service.UpdateOrganizationInput{
		OrganizationName: "Acme Co",
		Email:            "new@acme.io",
		Password:         "newpass12",
		ActingAdminID:    adminID,
	})
	assert.ErrorIs(t, err, domain.ErrUpdateFailed)
}

type ctxAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *ctxAuditor) LogEvent(ctx context.Context, event audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func TestCreateRollbackAuditedAfterCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	orgRepo := mocks.NewMockOrganizationRepositoryIface(ctrl)
	adminRepo := mocks.NewMockAdminRepositoryIface(ctrl)
	partitions := mocks.NewMockManagerIface(ctrl)
	auditor := &ctxAuditor{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orgRepo.EXPECT().FindByName(gomock.Any(), "Acme Co").Return(nil, domain.ErrOrganizationNotFound)
	orgRepo.EXPECT().FindByCollectionName(gomock.Any(), "org_acme_co").Return(nil, domain.ErrOrganizationNotFound)
	adminRepo.EXPECT().FindByEmail(gomock.Any(), "admin@acme.io").Return(nil, domain.ErrAdminNotFound)
	partitions.EXPECT().Create(gomock.Any(), "org_acme_co").Return(nil)
	adminRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *model.Admin) error {
			cancel()
			return context.Canceled
		})
	partitions.EXPECT().Delete(gomock.Any(), "org_acme_co").DoAndReturn(
		func(ctx context.Context, _ string) error {
			return ctx.Err()
		})

	svc := service.NewOrganizationService(orgRepo, adminRepo, partitions, auth.NewPasswordHasher(), nil, auditor)
	_, err := svc.Create(ctx, service.CreateOrganizationInput{
		OrganizationName: "Acme Co",
		Email:            "admin@acme.io",
		Password:         "s3cretpass",
	})
	assert.ErrorIs(t, err, domain.ErrCreateFailed)

	require.Len(t, auditor.events, 1)
	assert.Equal(t, model.ActionOrganizationCreate, auditor.events[0].Action)
	assert.False(t, auditor.events[0].Result)
}
