package grpc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/service/customers"
)

type CustomersServer struct {
	svc customersService
	log *slog.Logger
}

type customersService interface {
	Create(ctx context.Context, in customers.CreateInput) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Customer, error)
	Search(ctx context.Context, term string) ([]domain.Customer, error)
}

var _ CustomersServiceServer = (*CustomersServer)(nil)

func NewCustomersServer(svc customersService, log *slog.Logger) *CustomersServer {
	if log == nil {
		log = slog.Default()
	}
	return &CustomersServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.customers")),
	}
}

func (s *CustomersServer) CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*CreateCustomerResponse, error) {
	log := rpcLogger(ctx, s.log, "CreateCustomer")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := s.svc.Create(ctx, customers.CreateInput{Name: req.Name, Email: req.Email})
	if err != nil {
		return nil, statusError(log, err)
	}
	return &CreateCustomerResponse{ID: id.String()}, nil
}

func (s *CustomersServer) GetCustomer(ctx context.Context, req *GetCustomerRequest) (*GetCustomerResponse, error) {
	log := rpcLogger(ctx, s.log, "GetCustomer")

	id, err := parseID(log, req, func(r *GetCustomerRequest) string { return r.ID })
	if err != nil {
		return nil, err
	}
	c, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, statusError(log, err, slog.String("customer_id", id.String()))
	}
	return &GetCustomerResponse{Customer: toWireCustomer(c)}, nil
}

func (s *CustomersServer) SearchCustomers(ctx context.Context, req *SearchCustomersRequest) (*SearchCustomersResponse, error) {
	log := rpcLogger(ctx, s.log, "SearchCustomers")

	var term string
	if req != nil {
		term = req.Term
	}
	found, err := s.svc.Search(ctx, term)
	if err != nil {
		return nil, statusError(log, err)
	}

	out := make([]Customer, 0, len(found))
	for _, c := range found {
		out = append(out, toWireCustomer(c))
	}
	log.Debug("customers searched", slog.Int("count", len(out)))
	return &SearchCustomersResponse{Customers: out}, nil
}
