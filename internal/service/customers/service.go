package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/service"
	"scheduleit/backend/internal/store"
)

const (
	MaxSearchResults = 20
	maxNameLen       = 100
	maxEmailLen      = 200
)

type Service struct {
	repo     store.Repository
	validate *validator.Validate
	log      *slog.Logger
}

func NewService(repo store.Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With(slog.String("component", "service.customers")),
	}
}

type CreateInput struct {
	Name  string `validate:"required,max=100"`
	Email string `validate:"required,max=200,email"`
}

// Create registers a customer and returns its id. Emails are unique
// regardless of case.
func (s *Service) Create(ctx context.Context, in CreateInput) (uuid.UUID, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return uuid.Nil, validationError(err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}
	c := domain.Customer{ID: id, Name: in.Name, Email: in.Email}

	err = s.repo.InTransaction(ctx, func(ctx context.Context, tx store.CalendarTx) error {
		_, err := tx.GetCustomerByEmail(ctx, c.Email)
		switch {
		case err == nil:
			return emailTaken(c.Email)
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("lookup customer email: %w", err)
		}
		if err := tx.AddCustomer(ctx, c); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return emailTaken(c.Email)
			}
			return fmt.Errorf("insert customer: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.log.InfoContext(ctx, "customer created", slog.String("customer_id", id.String()))
	return id, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	if id == uuid.Nil {
		return domain.Customer{}, service.Validation("customer id is required")
	}
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Customer{}, service.NotFound("customer", id.String())
		}
		return domain.Customer{}, fmt.Errorf("load customer %s: %w", id, err)
	}
	return c, nil
}

// Search matches term against names and emails, ordered by name. An empty term
// lists the first customers by name.
func (s *Service) Search(ctx context.Context, term string) ([]domain.Customer, error) {
	out, err := s.repo.SearchCustomers(ctx, strings.TrimSpace(term), MaxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	return out, nil
}

func emailTaken(email string) error {
	return service.Validationf("customer with email %s already exists", email)
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate customer: %w", err)
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return service.Validationf("%s is required", field)
	case "max":
		limit := maxNameLen
		if fe.Field() == "Email" {
			limit = maxEmailLen
		}
		return service.Validationf("%s must be at most %d characters", field, limit)
	case "email":
		return service.Validation("email is not a valid address")
	default:
		return service.Validationf("%s is invalid", field)
	}
}
