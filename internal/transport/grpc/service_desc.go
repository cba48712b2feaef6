package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	appointmentsServiceName = "scheduleit.v1.AppointmentsService"
	customersServiceName    = "scheduleit.v1.CustomersService"
)

type AppointmentsServiceServer interface {
	BookAppointment(context.Context, *BookAppointmentRequest) (*BookAppointmentResponse, error)
	GetAppointment(context.Context, *GetAppointmentRequest) (*GetAppointmentResponse, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	UpdateAppointmentStatus(context.Context, *UpdateAppointmentStatusRequest) (*UpdateAppointmentStatusResponse, error)
	CancelAppointment(context.Context, *CancelAppointmentRequest) (*CancelAppointmentResponse, error)
	DeleteAppointment(context.Context, *DeleteAppointmentRequest) (*DeleteAppointmentResponse, error)
	GetTodayStats(context.Context, *GetTodayStatsRequest) (*GetTodayStatsResponse, error)
}

type CustomersServiceServer interface {
	CreateCustomer(context.Context, *CreateCustomerRequest) (*CreateCustomerResponse, error)
	GetCustomer(context.Context, *GetCustomerRequest) (*GetCustomerResponse, error)
	SearchCustomers(context.Context, *SearchCustomersRequest) (*SearchCustomersResponse, error)
}

var AppointmentsServiceDesc = grpc.ServiceDesc{
	ServiceName: appointmentsServiceName,
	HandlerType: (*AppointmentsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(appointmentsServiceName, "BookAppointment", AppointmentsServiceServer.BookAppointment),
		unaryMethod(appointmentsServiceName, "GetAppointment", AppointmentsServiceServer.GetAppointment),
		unaryMethod(appointmentsServiceName, "ListAppointments", AppointmentsServiceServer.ListAppointments),
		unaryMethod(appointmentsServiceName, "UpdateAppointmentStatus", AppointmentsServiceServer.UpdateAppointmentStatus),
		unaryMethod(appointmentsServiceName, "CancelAppointment", AppointmentsServiceServer.CancelAppointment),
		unaryMethod(appointmentsServiceName, "DeleteAppointment", AppointmentsServiceServer.DeleteAppointment),
		unaryMethod(appointmentsServiceName, "GetTodayStats", AppointmentsServiceServer.GetTodayStats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scheduleit/v1/scheduleit.proto",
}

var CustomersServiceDesc = grpc.ServiceDesc{
	ServiceName: customersServiceName,
	HandlerType: (*CustomersServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(customersServiceName, "CreateCustomer", CustomersServiceServer.CreateCustomer),
		unaryMethod(customersServiceName, "GetCustomer", CustomersServiceServer.GetCustomer),
		unaryMethod(customersServiceName, "SearchCustomers", CustomersServiceServer.SearchCustomers),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scheduleit/v1/scheduleit.proto",
}

func RegisterAppointmentsServiceServer(s grpc.ServiceRegistrar, srv AppointmentsServiceServer) {
	s.RegisterService(&AppointmentsServiceDesc, srv)
}

func RegisterCustomersServiceServer(s grpc.ServiceRegistrar, srv CustomersServiceServer) {
	s.RegisterService(&CustomersServiceDesc, srv)
}

// unaryMethod builds the method table entry that protoc-gen-go-grpc would
// generate for a unary RPC.
func unaryMethod[S any, Req any, Resp any](serviceName, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AppointmentsClient calls AppointmentsService over any connection; it forces
// the Struct codec so no server-side codec negotiation is needed.
type AppointmentsClient struct {
	cc grpc.ClientConnInterface
}

func NewAppointmentsClient(cc grpc.ClientConnInterface) *AppointmentsClient {
	return &AppointmentsClient{cc: cc}
}

func (c *AppointmentsClient) BookAppointment(ctx context.Context, in *BookAppointmentRequest, opts ...grpc.CallOption) (*BookAppointmentResponse, error) {
	return invoke[BookAppointmentResponse](ctx, c.cc, appointmentsServiceName, "BookAppointment", in, opts)
}

func (c *AppointmentsClient) GetAppointment(ctx context.Context, in *GetAppointmentRequest, opts ...grpc.CallOption) (*GetAppointmentResponse, error) {
	return invoke[GetAppointmentResponse](ctx, c.cc, appointmentsServiceName, "GetAppointment", in, opts)
}

func (c *AppointmentsClient) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsResponse, error) {
	return invoke[ListAppointmentsResponse](ctx, c.cc, appointmentsServiceName, "ListAppointments", in, opts)
}

func (c *AppointmentsClient) UpdateAppointmentStatus(ctx context.Context, in *UpdateAppointmentStatusRequest, opts ...grpc.CallOption) (*UpdateAppointmentStatusResponse, error) {
	return invoke[UpdateAppointmentStatusResponse](ctx, c.cc, appointmentsServiceName, "UpdateAppointmentStatus", in, opts)
}

func (c *AppointmentsClient) CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpc.CallOption) (*CancelAppointmentResponse, error) {
	return invoke[CancelAppointmentResponse](ctx, c.cc, appointmentsServiceName, "CancelAppointment", in, opts)
}

func (c *AppointmentsClient) DeleteAppointment(ctx context.Context, in *DeleteAppointmentRequest, opts ...grpc.CallOption) (*DeleteAppointmentResponse, error) {
	return invoke[DeleteAppointmentResponse](ctx, c.cc, appointmentsServiceName, "DeleteAppointment", in, opts)
}

func (c *AppointmentsClient) GetTodayStats(ctx context.Context, in *GetTodayStatsRequest, opts ...grpc.CallOption) (*GetTodayStatsResponse, error) {
	return invoke[GetTodayStatsResponse](ctx, c.cc, appointmentsServiceName, "GetTodayStats", in, opts)
}

type CustomersClient struct {
	cc grpc.ClientConnInterface
}

func NewCustomersClient(cc grpc.ClientConnInterface) *CustomersClient {
	return &CustomersClient{cc: cc}
}

func (c *CustomersClient) CreateCustomer(ctx context.Context, in *CreateCustomerRequest, opts ...grpc.CallOption) (*CreateCustomerResponse, error) {
	return invoke[CreateCustomerResponse](ctx, c.cc, customersServiceName, "CreateCustomer", in, opts)
}

func (c *CustomersClient) GetCustomer(ctx context.Context, in *GetCustomerRequest, opts ...grpc.CallOption) (*GetCustomerResponse, error) {
	return invoke[GetCustomerResponse](ctx, c.cc, customersServiceName, "GetCustomer", in, opts)
}

func (c *CustomersClient) SearchCustomers(ctx context.Context, in *SearchCustomersRequest, opts ...grpc.CallOption) (*SearchCustomersResponse, error) {
	return invoke[SearchCustomersResponse](ctx, c.cc, customersServiceName, "SearchCustomers", in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, serviceName, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
