package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-reconciler/internal/core/service"
)

// GRPCHandler answers business failures in the response body and keeps gRPC errors
// for transport problems.
type GRPCHandler struct {
	reconciliation *service.ReconciliationService
	logger         *zap.Logger
}

var _ ReconciliationServer = (*GRPCHandler)(nil)

func NewGRPCHandler(reconciliation *service.ReconciliationService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{reconciliation: reconciliation, logger: logger}
}

func (h *GRPCHandler) ValidateTransfer(ctx context.Context, req *ValidateTransferGRPCRequest) (*ValidateTransferGRPCResponse, error) {
	d, err := h.reconciliation.ValidateTransfer(ctx, req.SessionID, req.SourceIndex, req.Quantity)
	if err != nil {
		e := h.classify("ValidateTransfer", err)
		return &ValidateTransferGRPCResponse{Reason: e.Message, Code: e.Code}, nil
	}
	return &ValidateTransferGRPCResponse{Accepted: d.Accepted, Reason: d.Reason}, nil
}

func (h *GRPCHandler) TransferInventory(ctx context.Context, req *TransferGRPCRequest) (*TransferGRPCResponse, error) {
	res, err := h.reconciliation.TransferInventory(ctx, req.SessionID, service.TransferRequest{
		SourceIndex: req.SourceIndex,
		ItemName:    req.ItemName,
		Quantity:    req.Quantity,
		RequestID:   req.RequestID,
	})
	if err != nil {
		e := h.classify("TransferInventory", err)
		return &TransferGRPCResponse{
			Success: false,
			Message: e.Message,
			Code:    e.Code,
		}, nil
	}

	return &TransferGRPCResponse{
		Success:   true,
		Message:   res.Message,
		Advisory:  res.Advisory,
		Warehouse: &res.Warehouse,
		Transfer:  res.Record,
	}, nil
}

func (h *GRPCHandler) BillPartial(ctx context.Context, req *BillGRPCRequest) (*BillGRPCResponse, error) {
	filter, err := service.ParseOrderFilter(req.Status, req.Period, req.From, req.To)
	if err != nil {
		e := h.classify("BillPartial", err)
		return &BillGRPCResponse{Message: e.Message, Code: e.Code}, nil
	}

	res, err := h.reconciliation.BillPartial(ctx, req.SessionID, service.BillRequest{
		OrderID:    req.OrderID,
		Quantities: req.Quantities,
		Filter:     filter,
	})
	if err != nil {
		e := h.classify("BillPartial", err)
		return &BillGRPCResponse{
			Success: false,
			Message: e.Message,
			Code:    e.Code,
			Reasons: e.Fields,
		}, nil
	}

	return &BillGRPCResponse{
		Success:  true,
		Message:  res.Message,
		Advisory: res.Advisory,
		Order:    res.Order,
		Orders:   res.Orders,
	}, nil
}

func (h *GRPCHandler) classify(method string, err error) apiError {
	e := classify(err)
	if e.Code == "INTERNAL_ERROR" || errors.Is(err, context.DeadlineExceeded) {
		h.logger.Error("grpc call failed", zap.String("method", method), zap.Error(err))
	}
	return e
}
