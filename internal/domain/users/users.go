package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotImplemented  = errors.New("users repository: not implemented")
	ErrNotFound        = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrEmailExists     = errors.New("email already in use")
)

const (
	minPasswordLength = 6
	// bcrypt only hashes the first 72 bytes and rejects longer input.
	maxPasswordBytes = 72
)

// User represents an authenticated account together with the business details printed on
// its invoices.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	BusinessName string
	Address      string
	Phone        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository defines persistence behaviour for users.
type Repository interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Save(ctx context.Context, user User) (User, error)
}

// NullRepository can be used when no storage is configured.
type NullRepository struct{}

func (NullRepository) FindByID(context.Context, string) (User, error)    { return User{}, ErrNotImplemented }
func (NullRepository) FindByEmail(context.Context, string) (User, error) { return User{}, ErrNotImplemented }
func (NullRepository) Save(context.Context, User) (User, error)          { return User{}, ErrNotImplemented }

// Service exposes user registration, authentication and profile logic.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (User, error)
	Authenticate(ctx context.Context, email, password string) (User, error)
	Get(ctx context.Context, id string) (User, error)
	UpdateProfile(ctx context.Context, id string, input ProfileInput) (User, error)
}

// RegisterInput captures data required to create an account.
type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(minPasswordLength, 0), validation.By(maxBytes(maxPasswordBytes))),
	)
}

// ProfileInput is a partial profile update; nil fields are left alone.
type ProfileInput struct {
	Name         *string `json:"name"`
	BusinessName *string `json:"businessName"`
	Address      *string `json:"address"`
	Phone        *string `json:"phone"`
}

func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&in.BusinessName, validation.Length(0, 200)),
		validation.Field(&in.Address, validation.Length(0, 500)),
		validation.Field(&in.Phone, validation.Length(0, 40)),
	)
}

func (in ProfileInput) trimmed() ProfileInput {
	in.Name = trimPtr(in.Name)
	in.BusinessName = trimPtr(in.BusinessName)
	in.Address = trimPtr(in.Address)
	in.Phone = trimPtr(in.Phone)
	return in
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	return &s
}

func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); len(s) > n {
			return fmt.Errorf("must be at most %d bytes", n)
		}
		return nil
	}
}

type service struct {
	repo Repository
	cost int
}

// NewService constructs a user service.
func NewService(repo Repository) Service {
	return &service{repo: repo, cost: bcrypt.DefaultCost}
}

// NewServiceWithCost is NewService with an explicit bcrypt cost, used by tests to keep hashing fast.
func NewServiceWithCost(repo Repository, cost int) Service {
	return &service{repo: repo, cost: cost}
}

func (s *service) Register(ctx context.Context, input RegisterInput) (User, error) {
	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if err := input.Validate(); err != nil {
		return User{}, err
	}

	if _, err := s.repo.FindByEmail(ctx, input.Email); err == nil {
		return User{}, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNotImplemented) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.Save(ctx, User{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hash),
	})
}

func (s *service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return User{}, validation.Errors{"email": errors.New("cannot be blank")}
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidPassword
	}
	return user, nil
}

func (s *service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) UpdateProfile(ctx context.Context, id string, input ProfileInput) (User, error) {
	input = input.trimmed()
	if err := input.Validate(); err != nil {
		return User{}, err
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.BusinessName != nil {
		user.BusinessName = *input.BusinessName
	}
	if input.Address != nil {
		user.Address = *input.Address
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}

	return s.repo.Save(ctx, user)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
