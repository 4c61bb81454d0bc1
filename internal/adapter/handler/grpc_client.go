package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// InventoryClient calls the inventory service with the JSON codec.
type InventoryClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryClient(cc grpc.ClientConnInterface) *InventoryClient {
	return &InventoryClient{cc: cc}
}

// WithBearerToken attaches token to outgoing calls made with ctx.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func (c *InventoryClient) Borrow(ctx context.Context, in *LoanRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	out := new(MessageResponse)
	if err := c.invoke(ctx, InventoryBorrowMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) Return(ctx context.Context, in *LoanRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	out := new(MessageResponse)
	if err := c.invoke(ctx, InventoryReturnMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) ListBorrowed(ctx context.Context, in *BorrowedBooksRequest, opts ...grpc.CallOption) (*BorrowedBooksResponse, error) {
	out := new(BorrowedBooksResponse)
	if err := c.invoke(ctx, InventoryListBorrowedMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) SetStock(ctx context.Context, in *SetStockRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	out := new(MessageResponse)
	if err := c.invoke(ctx, InventorySetStockMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}
