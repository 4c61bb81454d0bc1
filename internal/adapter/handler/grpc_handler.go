package handler

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/core/rbac"
	"github.com/rl1809/bookshelf/internal/core/service"
)

const InventoryServiceName = "bookshelf.v1.Inventory"

const (
	InventoryBorrowMethod       = "/" + InventoryServiceName + "/Borrow"
	InventoryReturnMethod       = "/" + InventoryServiceName + "/Return"
	InventoryListBorrowedMethod = "/" + InventoryServiceName + "/ListBorrowed"
	InventorySetStockMethod     = "/" + InventoryServiceName + "/SetStock"
)

type LoanRequest struct {
	UserID    string `json:"userId"`
	ISBN      string `json:"isbn"`
	RequestID string `json:"requestId,omitempty"`
}

type BorrowedBooksRequest struct {
	UserID string `json:"userId"`
}

type BorrowedBooksResponse struct {
	Books []domain.Book `json:"books"`
}

type SetStockRequest struct {
	ISBN     string `json:"isbn"`
	Quantity int    `json:"quantity"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type InventoryServer interface {
	Borrow(context.Context, *LoanRequest) (*MessageResponse, error)
	Return(context.Context, *LoanRequest) (*MessageResponse, error)
	ListBorrowed(context.Context, *BorrowedBooksRequest) (*BorrowedBooksResponse, error)
	SetStock(context.Context, *SetStockRequest) (*MessageResponse, error)
}

// InventoryMethodPermissions lists the methods that need a fixed permission.
// Loan methods are missing on purpose: they admit the borrower themselves and
// check manage_loans in the handler.
var InventoryMethodPermissions = map[string]string{
	InventorySetStockMethod: domain.PermUpdateBook,
}

type GRPCHandler struct {
	inventory *service.InventoryService
	roles     *rbac.Registry
	logger    *slog.Logger
}

var _ InventoryServer = (*GRPCHandler)(nil)

func NewGRPCHandler(inventory *service.InventoryService, roles *rbac.Registry, logger *slog.Logger) *GRPCHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCHandler{
		inventory: inventory,
		roles:     roles,
		logger:    logger.With("component", "grpc"),
	}
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&inventoryServiceDesc, srv)
}

func (h *GRPCHandler) Borrow(ctx context.Context, req *LoanRequest) (*MessageResponse, error) {
	if err := h.authorizeSelf(ctx, req.UserID); err != nil {
		return nil, err
	}
	if err := h.inventory.Borrow(ctx, req.UserID, req.ISBN, req.RequestID); err != nil {
		return nil, h.toStatus(err)
	}
	return &MessageResponse{Message: "book borrowed successfully"}, nil
}

func (h *GRPCHandler) Return(ctx context.Context, req *LoanRequest) (*MessageResponse, error) {
	if err := h.authorizeSelf(ctx, req.UserID); err != nil {
		return nil, err
	}
	if err := h.inventory.Return(ctx, req.UserID, req.ISBN); err != nil {
		return nil, h.toStatus(err)
	}
	return &MessageResponse{Message: "book returned successfully"}, nil
}

func (h *GRPCHandler) ListBorrowed(ctx context.Context, req *BorrowedBooksRequest) (*BorrowedBooksResponse, error) {
	if err := h.authorizeSelf(ctx, req.UserID); err != nil {
		return nil, err
	}
	books, err := h.inventory.BorrowedBooks(ctx, req.UserID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	if books == nil {
		books = []domain.Book{}
	}
	return &BorrowedBooksResponse{Books: books}, nil
}

func (h *GRPCHandler) SetStock(ctx context.Context, req *SetStockRequest) (*MessageResponse, error) {
	if err := h.inventory.SetStock(ctx, req.ISBN, req.Quantity); err != nil {
		return nil, h.toStatus(err)
	}
	return &MessageResponse{Message: "stock updated"}, nil
}

func (h *GRPCHandler) authorizeSelf(ctx context.Context, userID string) error {
	var caller *domain.Identity
	if id, ok := domain.IdentityFromContext(ctx); ok {
		caller = &id
	}
	if err := h.roles.AuthorizeSelf(caller, userID, domain.PermManageLoans); err != nil {
		return status.Error(codes.PermissionDenied, err.Error())
	}
	return nil
}

func (h *GRPCHandler) toStatus(err error) error {
	code := grpcCode(err)
	if code == codes.Internal {
		h.logger.Error("rpc failed", "error", err)
		return status.Error(codes.Internal, "internal server error")
	}
	return status.Error(code, err.Error())
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return codes.Unauthenticated
	case errors.Is(err, domain.ErrInvalidCredential), errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnknownRole):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrForbidden):
		return codes.PermissionDenied
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrBookNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrAlreadyBorrowed), errors.Is(err, domain.ErrDuplicateRequest),
		errors.Is(err, domain.ErrBookExists), errors.Is(err, domain.ErrUsernameTaken):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrOutOfStock), errors.Is(err, domain.ErrNoActiveBorrow),
		errors.Is(err, domain.ErrBookOnLoan), errors.Is(err, domain.ErrUserHasLoans):
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

func borrowHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LoanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).Borrow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryBorrowMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).Borrow(ctx, req.(*LoanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func returnHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LoanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).Return(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryReturnMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).Return(ctx, req.(*LoanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listBorrowedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BorrowedBooksRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).ListBorrowed(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryListBorrowedMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).ListBorrowed(ctx, req.(*BorrowedBooksRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func setStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SetStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).SetStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventorySetStockMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).SetStock(ctx, req.(*SetStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: InventoryServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Borrow", Handler: borrowHandler},
		{MethodName: "Return", Handler: returnHandler},
		{MethodName: "ListBorrowed", Handler: listBorrowedHandler},
		{MethodName: "SetStock", Handler: setStockHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bookshelf/v1/inventory",
}
