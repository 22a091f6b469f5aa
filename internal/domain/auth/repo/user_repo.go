package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/accounthub/auth-service/internal/domain/auth/model"
	"github.com/accounthub/auth-service/internal/domain/auth/sort"
)

type UserRepo interface {
	CreateUser(ctx context.Context, u model.User) (uuid.UUID, error)

	GetUserByEmail(ctx context.Context, email string) (model.User, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)

	GetUserByUsername(ctx context.Context, username string) (model.User, error)

	UpdateUser(ctx context.Context, u model.User) error

	DeleteUser(ctx context.Context, id uuid.UUID) error

	// ListUsers returns one page of users ordered by the given directives.
	// Ties are always broken by id so pagination is deterministic across calls.
	ListUsers(ctx context.Context, pageNo, pageSize int, orders []sort.Directive) (model.Page[model.User], error)
}
