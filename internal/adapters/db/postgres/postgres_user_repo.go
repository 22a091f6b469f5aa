package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	customErrors "github.com/accounthub/auth-service/internal/domain/auth/errors"
	"github.com/accounthub/auth-service/internal/domain/auth/model"
	"github.com/accounthub/auth-service/internal/domain/auth/sort"
)

type PostgresUserRepo struct {
	db *gorm.DB
}

func NewPostgresUserRepo(db *gorm.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (p *PostgresUserRepo) CreateUser(ctx context.Context, user model.User) (uuid.UUID, error) {
	res := p.db.WithContext(ctx).Create(&user)
	if err := res.Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, customErrors.ErrAlreadyExists
		}
		return uuid.Nil, customErrors.WrapInternal(err, "CreateUser")
	}
	return user.ID, nil
}

func (p *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).Where("email = ?", email).First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, "GetUserByEmail")
	}

	return u, nil
}

func (p *PostgresUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).Where("id = ?", id).First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, "GetUserByID")
	}

	return u, nil
}

func (p *PostgresUserRepo) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).Where("username = ?", username).First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, "GetUserByUsername")
	}

	return u, nil
}

func (p *PostgresUserRepo) UpdateUser(ctx context.Context, user model.User) error {
	res := p.db.WithContext(ctx).Save(&user)
	if err := res.Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return customErrors.ErrAlreadyExists
		}
		return customErrors.WrapInternal(err, "UpdateUser")
	}

	return nil
}

func (p *PostgresUserRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res := p.db.WithContext(ctx).Delete(&model.User{}, "id = ?", id)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "DeleteUser")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}

	return nil
}

func (p *PostgresUserRepo) ListUsers(ctx context.Context, pageNo, pageSize int, orders []sort.Directive) (model.Page[model.User], error) {
	if pageNo < 1 {
		pageNo = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var total int64
	if err := p.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return model.Page[model.User]{}, customErrors.WrapInternal(err, "ListUsers count")
	}

	q := p.db.WithContext(ctx)
	for _, clause := range sort.OrderClauses(orders) {
		q = q.Order(clause)
	}

	var users []model.User
	if err := q.Offset((pageNo - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		return model.Page[model.User]{}, customErrors.WrapInternal(err, "ListUsers")
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return model.Page[model.User]{
		Items:      users,
		PageNo:     pageNo,
		PageSize:   pageSize,
		TotalPages: totalPages,
		TotalItems: total,
	}, nil
}
