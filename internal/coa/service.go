package coa

import "context"

// Service exposes read access to the account directory.
type Service struct {
	repo  Repository
	roles RoleMap
}

// NewService builds a Service instance.
func NewService(repo Repository, roles RoleMap) *Service {
	if roles == nil {
		roles = DefaultRoles()
	}
	return &Service{repo: repo, roles: roles}
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Find(ctx, id)
}

// GetByCode returns an account by its unique code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.FindByCode(ctx, code)
}

// GetByRole resolves a semantic role to its account.
func (s *Service) GetByRole(ctx context.Context, role Role) (Account, error) {
	code, err := s.roles.Code(role)
	if err != nil {
		return Account{}, err
	}
	return s.repo.FindByCode(ctx, code)
}

// List returns all active accounts ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// Roles returns the configured role bindings.
func (s *Service) Roles() RoleMap {
	return s.roles
}
