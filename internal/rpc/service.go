package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/example/ledger-core/internal/ledger"
)

const (
	ServiceName = "ledger.v1.Ledger"

	methodCreateEntry    = "/" + ServiceName + "/CreateEntry"
	methodCreateTransfer = "/" + ServiceName + "/CreateTransfer"
	methodBulkReconcile  = "/" + ServiceName + "/BulkReconcile"
	methodRefreshBalance = "/" + ServiceName + "/RefreshBalance"
)

// Amounts are decimal strings so that no precision is lost on the wire

type CreateEntryRequest struct {
	AccountID     string `json:"account_id"`
	EffectiveDate string `json:"effective_date"`
	Amount        string `json:"amount"`
	Direction     string `json:"direction"`
	Description   string `json:"description,omitempty"`
	CategoryID    string `json:"category_id,omitempty"`
}

type CreateTransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	EffectiveDate string `json:"effective_date"`
	CategoryID    string `json:"category_id,omitempty"`
	Description   string `json:"description,omitempty"`
}

type BulkReconcileRequest struct {
	EntryIDs []string `json:"entry_ids"`
	Action   string   `json:"action"`
}

type RefreshBalanceRequest struct {
	AccountID string `json:"account_id"`
}

// LedgerServer is implemented by Server
type LedgerServer interface {
	CreateEntry(context.Context, *CreateEntryRequest) (*ledger.Entry, error)
	CreateTransfer(context.Context, *CreateTransferRequest) (*ledger.Transfer, error)
	BulkReconcile(context.Context, *BulkReconcileRequest) (*ledger.ReconcileResult, error)
	RefreshBalance(context.Context, *RefreshBalanceRequest) (*ledger.BalanceRefresh, error)
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

// unaryHandler adapts one LedgerServer method to a grpc.MethodDesc handler
func unaryHandler[Req any, Resp any](fullMethod string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateEntry", Handler: unaryHandler(methodCreateEntry, LedgerServer.CreateEntry)},
		{MethodName: "CreateTransfer", Handler: unaryHandler(methodCreateTransfer, LedgerServer.CreateTransfer)},
		{MethodName: "BulkReconcile", Handler: unaryHandler(methodBulkReconcile, LedgerServer.BulkReconcile)},
		{MethodName: "RefreshBalance", Handler: unaryHandler(methodRefreshBalance, LedgerServer.RefreshBalance)},
	},
	Streams: []grpc.StreamDesc{},
}

// Client calls the ledger service over cc using the JSON codec
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateEntry(ctx context.Context, in *CreateEntryRequest, opts ...grpc.CallOption) (*ledger.Entry, error) {
	return invoke[ledger.Entry](ctx, c.cc, methodCreateEntry, in, opts)
}

func (c *Client) CreateTransfer(ctx context.Context, in *CreateTransferRequest, opts ...grpc.CallOption) (*ledger.Transfer, error) {
	return invoke[ledger.Transfer](ctx, c.cc, methodCreateTransfer, in, opts)
}

func (c *Client) BulkReconcile(ctx context.Context, in *BulkReconcileRequest, opts ...grpc.CallOption) (*ledger.ReconcileResult, error) {
	return invoke[ledger.ReconcileResult](ctx, c.cc, methodBulkReconcile, in, opts)
}

func (c *Client) RefreshBalance(ctx context.Context, in *RefreshBalanceRequest, opts ...grpc.CallOption) (*ledger.BalanceRefresh, error) {
	return invoke[ledger.BalanceRefresh](ctx, c.cc, methodRefreshBalance, in, opts)
}
