package handler

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
)

const serviceName = "reconciler.v1.Reconciliation"

type ValidateTransferGRPCRequest struct {
	SessionID   string `json:"session_id"`
	SourceIndex int    `json:"source_index"`
	Quantity    string `json:"quantity"`
}

type ValidateTransferGRPCResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Code     string `json:"code,omitempty"`
}

type TransferGRPCRequest struct {
	SessionID   string `json:"session_id"`
	SourceIndex int    `json:"source_index"`
	ItemName    string `json:"item_name"`
	Quantity    string `json:"quantity"`
	RequestID   string `json:"request_id"`
}

type TransferGRPCResponse struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Advisory  bool                   `json:"advisory,omitempty"`
	Warehouse *domain.Warehouse      `json:"warehouse,omitempty"`
	Transfer  *domain.TransferRecord `json:"transfer,omitempty"`
}

type BillGRPCRequest struct {
	SessionID  string            `json:"session_id"`
	OrderID    string            `json:"order_id"`
	Quantities map[string]string `json:"quantities"`
	Status     string            `json:"status"`
	Period     string            `json:"period"`
	From       string            `json:"from"`
	To         string            `json:"to"`
}

type BillGRPCResponse struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Code     string            `json:"code,omitempty"`
	Reasons  map[string]string `json:"reasons,omitempty"`
	Advisory bool              `json:"advisory,omitempty"`
	Order    *domain.Order     `json:"order,omitempty"`
	Orders   []domain.Order    `json:"orders,omitempty"`
}

type ReconciliationServer interface {
	ValidateTransfer(context.Context, *ValidateTransferGRPCRequest) (*ValidateTransferGRPCResponse, error)
	TransferInventory(context.Context, *TransferGRPCRequest) (*TransferGRPCResponse, error)
	BillPartial(context.Context, *BillGRPCRequest) (*BillGRPCResponse, error)
}

func RegisterReconciliationServer(s grpc.ServiceRegistrar, srv ReconciliationServer) {
	s.RegisterService(&reconciliationServiceDesc, srv)
}

var reconciliationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReconciliationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateTransfer", Handler: validateTransferHandler},
		{MethodName: "TransferInventory", Handler: transferInventoryHandler},
		{MethodName: "BillPartial", Handler: billPartialHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func validateTransferHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ValidateTransferGRPCRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconciliationServer).ValidateTransfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ValidateTransfer"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReconciliationServer).ValidateTransfer(ctx, req.(*ValidateTransferGRPCRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func transferInventoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TransferGRPCRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconciliationServer).TransferInventory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/TransferInventory"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReconciliationServer).TransferInventory(ctx, req.(*TransferGRPCRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func billPartialHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BillGRPCRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconciliationServer).BillPartial(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/BillPartial"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReconciliationServer).BillPartial(ctx, req.(*BillGRPCRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ReconciliationClient calls the service over a connection using the JSON codec.
type ReconciliationClient struct {
	cc grpc.ClientConnInterface
}

func NewReconciliationClient(cc grpc.ClientConnInterface) *ReconciliationClient {
	return &ReconciliationClient{cc: cc}
}

func (c *ReconciliationClient) ValidateTransfer(ctx context.Context, in *ValidateTransferGRPCRequest, opts ...grpc.CallOption) (*ValidateTransferGRPCResponse, error) {
	out := new(ValidateTransferGRPCResponse)
	if err := c.invoke(ctx, "ValidateTransfer", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReconciliationClient) TransferInventory(ctx context.Context, in *TransferGRPCRequest, opts ...grpc.CallOption) (*TransferGRPCResponse, error) {
	out := new(TransferGRPCResponse)
	if err := c.invoke(ctx, "TransferInventory", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReconciliationClient) BillPartial(ctx context.Context, in *BillGRPCRequest, opts ...grpc.CallOption) (*BillGRPCResponse, error) {
	out := new(BillGRPCResponse)
	if err := c.invoke(ctx, "BillPartial", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReconciliationClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}
