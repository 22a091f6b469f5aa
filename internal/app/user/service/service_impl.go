package service

import (
	"context"
	"errors"

	"github.com/alexedwards/argon2id"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/accounthub/auth-service/internal/adapters/transport/http/dto"
	customErrors "github.com/accounthub/auth-service/internal/domain/auth/errors"
	"github.com/accounthub/auth-service/internal/domain/auth/model"
	"github.com/accounthub/auth-service/internal/domain/auth/repo"
	"github.com/accounthub/auth-service/internal/domain/auth/sort"
	"github.com/accounthub/auth-service/internal/infra/config"
)

var argonParams = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  2,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

type Service interface {
	SaveUser(ctx context.Context, req dto.UserRequestDTO) (uuid.UUID, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req dto.UserRequestDTO) error
	ChangeStatus(ctx context.Context, id uuid.UUID, status string) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	GetUser(ctx context.Context, id uuid.UUID) (dto.UserDetailResponse, error)
	ListUsers(ctx context.Context, pageNo, pageSize int, sorts ...string) (dto.PageResponse, error)
}

type userService struct {
	userRepo repo.UserRepo
	cfg      *config.Config
	v        *validator.Validate
	log      *zap.Logger
}

func New(ur repo.UserRepo, cfg *config.Config, v *validator.Validate, log *zap.Logger) Service {
	return &userService{userRepo: ur, cfg: cfg, v: v, log: log}
}

func (s *userService) SaveUser(ctx context.Context, req dto.UserRequestDTO) (uuid.UUID, error) {
	if err := s.v.Struct(req); err != nil {
		return uuid.Nil, customErrors.NewInvalidArgument(err.Error())
	}
	if err := s.v.Var(req.Password, "required,strongpwd"); err != nil {
		return uuid.Nil, customErrors.ErrPasswordPolicy
	}

	hash, err := argon2id.CreateHash(req.Password+s.cfg.PasswordPepper, argonParams)
	if err != nil {
		return uuid.Nil, customErrors.WrapInternal(err, "SaveUser")
	}

	user := model.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		DateOfBirth:  req.DateOfBirth,
		Gender:       req.Gender,
		Status:       model.StatusActive,
		Type:         model.TypeUser,
	}
	if req.Status != "" {
		user.Status = model.UserStatus(req.Status)
	}
	if req.Type != "" {
		user.Type = model.UserType(req.Type)
	}

	id, err := s.userRepo.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, customErrors.ErrAlreadyExists) {
			return uuid.Nil, customErrors.ErrAlreadyExists
		}
		return uuid.Nil, customErrors.WrapInternal(err, "SaveUser")
	}
	s.log.Info("user saved", zap.String("user_id", id.String()))
	return id, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, req dto.UserRequestDTO) error {
	if err := s.v.Struct(req); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}

	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	if req.Email != user.Email {
		// changing an email requires it to be free
		owner, err := s.userRepo.GetUserByEmail(ctx, req.Email)
		switch {
		case err == nil && owner.ID != id:
			return customErrors.ErrAlreadyExists
		case err != nil && !errors.Is(err, customErrors.ErrNotFound):
			return customErrors.WrapInternal(err, "UpdateUser")
		}
		user.Email = req.Email
	}

	user.Username = req.Username
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Phone = req.Phone
	user.DateOfBirth = req.DateOfBirth
	user.Gender = req.Gender
	if req.Status != "" {
		user.Status = model.UserStatus(req.Status)
	}
	if req.Type != "" {
		user.Type = model.UserType(req.Type)
	}

	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.log.Info("user updated", zap.String("user_id", id.String()))
	return nil
}

func (s *userService) ChangeStatus(ctx context.Context, id uuid.UUID, status string) error {
	if err := s.v.Var(status, "required,oneof=ACTIVE LOCKED DISABLED"); err != nil {
		return customErrors.NewInvalidArgument("status must be one of ACTIVE, LOCKED, DISABLED")
	}

	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	user.Status = model.UserStatus(status)
	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.log.Info("user status changed",
		zap.String("user_id", id.String()), zap.String("status", status))
	return nil
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.userRepo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("user_id", id.String()))
	return nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (dto.UserDetailResponse, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return dto.UserDetailResponse{}, err
	}
	return toDetail(user), nil
}

func (s *userService) ListUsers(ctx context.Context, pageNo, pageSize int, sorts ...string) (dto.PageResponse, error) {
	page, err := s.userRepo.ListUsers(ctx, pageNo, pageSize, sort.ParseAll(sorts...))
	if err != nil {
		return dto.PageResponse{}, err
	}

	items := make([]dto.UserDetailResponse, 0, len(page.Items))
	for _, u := range page.Items {
		items = append(items, toDetail(u))
	}
	return dto.PageResponse{
		Page:       page.PageNo,
		Size:       page.PageSize,
		TotalPages: page.TotalPages,
		TotalItems: page.TotalItems,
		Items:      items,
	}, nil
}

func toDetail(u model.User) dto.UserDetailResponse {
	return dto.UserDetailResponse{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		DateOfBirth: u.DateOfBirth,
		Gender:      u.Gender,
		Status:      string(u.Status),
		Type:        string(u.Type),
	}
}
