package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"solicitudes/internal/model"
	"solicitudes/internal/policy"
	"solicitudes/internal/repository"
	"solicitudes/pkg/apperr"
	"solicitudes/pkg/pagination"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type RegisterUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
	Active    *bool   `json:"active"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// DTO for returning User without exposing sensitive data (e.g. password hash)
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	Register(ctx context.Context, req RegisterUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	Get(ctx context.Context, actor *model.User, id string) (*UserResponse, error)
	List(ctx context.Context, actor *model.User, page pagination.Params) ([]UserResponse, pagination.Meta, error)
	Update(ctx context.Context, actor *model.User, id string, req UpdateUserRequest) (*UserResponse, error)
	Delete(ctx context.Context, actor *model.User, id string) error
}

type userService struct {
	repo      repository.UserRepository
	jwtSecret []byte
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, jwtSecret []byte) UserService {
	return &userService{repo: repo, jwtSecret: jwtSecret}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func (s *userService) Register(ctx context.Context, req RegisterUserRequest) (*UserResponse, error) {
	fields := map[string]string{}
	if !emailRegex.MatchString(req.Email) {
		fields["email"] = "invalid email format"
	}

	role := model.RoleEmployee
	if req.Role != "" {
		role = model.Role(req.Role)
		if !role.Valid() {
			fields["role"] = "must be one of: employee, manager, admin"
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid registration payload", fields)
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Conflict("email already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Database(err)
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: string(hashed),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		Active:       true,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperr.Database(err)
	}

	return mapUserToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperr.Forbidden("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.Forbidden("invalid email or password")
	}

	if !user.Active {
		return nil, apperr.Forbidden("account is inactive")
	}

	// The token carries only the subject id; role and active flag are
	// re-read from the database on every authenticated call.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, apperr.Database(err)
	}

	return &TokenResponse{Token: tokenString, User: mapUserToResponse(user)}, nil
}

func (s *userService) Get(ctx context.Context, actor *model.User, id string) (*UserResponse, error) {
	// Everyone may read their own profile; otherwise the view-users rule
	// applies.
	if actor.ID.String() != id {
		if d := policy.CanViewUsers(actor); !d.Allowed {
			return nil, apperr.Forbidden(d.Reason)
		}
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapUserToResponse(user), nil
}

func (s *userService) List(ctx context.Context, actor *model.User, page pagination.Params) ([]UserResponse, pagination.Meta, error) {
	if d := policy.CanViewUsers(actor); !d.Allowed {
		return nil, pagination.Meta{}, apperr.Forbidden(d.Reason)
	}

	users, total, err := s.repo.List(ctx, page.Page, page.PerPage)
	if err != nil {
		return nil, pagination.Meta{}, apperr.Database(err)
	}

	result := make([]UserResponse, 0, len(users))
	for i := range users {
		result = append(result, *mapUserToResponse(&users[i]))
	}
	return result, pagination.NewMeta(total, page), nil
}

func (s *userService) Update(ctx context.Context, actor *model.User, id string, req UpdateUserRequest) (*UserResponse, error) {
	if d := policy.CanManageUsers(actor); !d.Allowed {
		return nil, apperr.Forbidden(d.Reason)
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil && *req.FirstName != "" {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		if !role.Valid() {
			return nil, apperr.Validation("invalid user payload", map[string]string{"role": "must be one of: employee, manager, admin"})
		}
		user.Role = role
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, apperr.Database(err)
	}
	return mapUserToResponse(user), nil
}

func (s *userService) Delete(ctx context.Context, actor *model.User, id string) error {
	if d := policy.CanDeleteUser(actor); !d.Allowed {
		return apperr.Forbidden(d.Reason)
	}
	if actor.ID.String() == id {
		return apperr.Conflict("you cannot delete your own account")
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, user.ID)
}

// --- Helpers ---

func (s *userService) loadUser(ctx context.Context, id string) (*model.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid user id", map[string]string{"id": "must be a valid UUID"})
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Database(err)
	}
	return user, nil
}

func mapUserToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
		Active:    user.Active,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
