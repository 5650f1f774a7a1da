package service_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dangerclosesec/orgmgr/internal/audit"
	"github.com/dangerclosesec/orgmgr/internal/domain"
	"github.com/dangerclosesec/orgmgr/internal/model"
	"github.com/dangerclosesec/orgmgr/internal/repository"
	"github.com/google/uuid"
)

// memStore backs the repository and partition interfaces with maps and
// enforces the same uniqueness rules as the database indexes.
type memStore struct {
	mu         sync.Mutex
	orgs       map[uuid.UUID]*model.Organization
	admins     map[uuid.UUID]*model.Admin
	partitions map[string]bool
	events     []audit.Event
}

func newMemStore() *memStore {
	return &memStore{
		orgs:       map[uuid.UUID]*model.Organization{},
		admins:     map[uuid.UUID]*model.Admin{},
		partitions: map[string]bool{},
	}
}

type memOrgRepo struct{ s *memStore }

type memAdminRepo struct{ s *memStore }

type memPartitions struct{ s *memStore }

type memAuditor struct{ s *memStore }

func (r memOrgRepo) Create(ctx context.Context, org *model.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orgs {
		if o.OrganizationName == org.OrganizationName || o.CollectionName == org.CollectionName {
			return domain.ErrOrganizationExists
		}
	}
	cp := *org
	r.s.orgs[org.ID] = &cp
	return nil
}

func (r memOrgRepo) FindByName(ctx context.Context, name string) (*model.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orgs {
		if strings.EqualFold(o.OrganizationName, name) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrganizationNotFound
}

func (r memOrgRepo) FindByCollectionName(ctx context.Context, collectionName string) (*model.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orgs {
		if o.CollectionName == collectionName {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrganizationNotFound
}

func (r memOrgRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orgs[id]
	if !ok {
		return nil, domain.ErrOrganizationNotFound
	}
	cp := *o
	return &cp, nil
}

func (r memOrgRepo) UpdateAdminEmail(ctx context.Context, id uuid.UUID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orgs[id]
	if !ok {
		return domain.ErrOrganizationNotFound
	}
	o.AdminEmail = email
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r memOrgRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.orgs, id)
	return nil
}

func (r memAdminRepo) Create(ctx context.Context, admin *model.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	admin.Email = repository.NormalizeEmail(admin.Email)
	for _, a := range r.s.admins {
		if a.Email == admin.Email {
			return domain.ErrEmailAlreadyExists
		}
	}
	cp := *admin
	r.s.admins[admin.ID] = &cp
	return nil
}

func (r memAdminRepo) FindByEmail(ctx context.Context, email string) (*model.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, a := range r.s.admins {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrAdminNotFound
}

func (r memAdminRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.admins[id]
	if !ok {
		return nil, domain.ErrAdminNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAdminRepo) SetOrganization(ctx context.Context, id, orgID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.admins[id]
	if !ok {
		return domain.ErrAdminNotFound
	}
	a.OrganizationID = &orgID
	return nil
}

func (r memAdminRepo) UpdateCredentials(ctx context.Context, id uuid.UUID, email, hashedPassword string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.admins[id]
	if !ok {
		return domain.ErrAdminNotFound
	}
	email = repository.NormalizeEmail(email)
	for _, other := range r.s.admins {
		if other.ID != id && other.Email == email {
			return domain.ErrEmailAlreadyExists
		}
	}
	a.Email = email
	a.HashedPassword = hashedPassword
	return nil
}

func (r memAdminRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.admins, id)
	return nil
}

func (p memPartitions) Create(ctx context.Context, name string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.partitions[name] = true
	return nil
}

func (p memPartitions) Exists(ctx context.Context, name string) (bool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.partitions[name], nil
}

func (p memPartitions) Delete(ctx context.Context, name string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	delete(p.s.partitions, name)
	return nil
}

func (p memPartitions) Rename(ctx context.Context, oldName, newName string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if !p.s.partitions[oldName] {
		return domain.ErrPartitionNotFound
	}
	delete(p.s.partitions, oldName)
	p.s.partitions[newName] = true
	return nil
}

func (a memAuditor) LogEvent(ctx context.Context, event audit.Event) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.events = append(a.s.events, event)
	return nil
}

func (s *memStore) hasPartition(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partitions[name]
}

func (s *memStore) counts() (orgs, admins, partitions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orgs), len(s.admins), len(s.partitions)
}
