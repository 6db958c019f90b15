package rpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/ledger-core/internal/ledger"
)

// Ledger is the part of *ledger.LedgerService exposed over gRPC
type Ledger interface {
	CreateEntry(ctx context.Context, req ledger.CreateEntryRequest) (*ledger.Entry, error)
	CreateTransfer(ctx context.Context, req ledger.CreateTransferRequest) (*ledger.Transfer, error)
	BulkReconcile(ctx context.Context, ids []string, action ledger.ReconcileAction) (*ledger.ReconcileResult, error)
	RefreshBalance(ctx context.Context, accountID string) (*ledger.BalanceRefresh, error)
}

// ErrorDomain is the ErrorInfo domain attached to ledger failures
const ErrorDomain = "ledger"

// Server implements LedgerServer over a Ledger
type Server struct {
	ledger Ledger
	logger *slog.Logger
}

func NewServer(l Ledger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ledger: l, logger: logger}
}

func (s *Server) CreateEntry(ctx context.Context, in *CreateEntryRequest) (*ledger.Entry, error) {
	amount, err := ledger.ParseAmount(in.Amount)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	e, err := s.ledger.CreateEntry(ctx, ledger.CreateEntryRequest{
		AccountID:     in.AccountID,
		EffectiveDate: in.EffectiveDate,
		Amount:        amount,
		Direction:     ledger.Direction(in.Direction),
		Description:   in.Description,
		CategoryID:    in.CategoryID,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return e, nil
}

func (s *Server) CreateTransfer(ctx context.Context, in *CreateTransferRequest) (*ledger.Transfer, error) {
	amount, err := ledger.ParseAmount(in.Amount)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	t, err := s.ledger.CreateTransfer(ctx, ledger.CreateTransferRequest{
		FromAccountID: in.FromAccountID,
		ToAccountID:   in.ToAccountID,
		Amount:        amount,
		EffectiveDate: in.EffectiveDate,
		CategoryID:    in.CategoryID,
		Description:   in.Description,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return t, nil
}

func (s *Server) BulkReconcile(ctx context.Context, in *BulkReconcileRequest) (*ledger.ReconcileResult, error) {
	res, err := s.ledger.BulkReconcile(ctx, in.EntryIDs, ledger.ReconcileAction(in.Action))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return res, nil
}

func (s *Server) RefreshBalance(ctx context.Context, in *RefreshBalanceRequest) (*ledger.BalanceRefresh, error) {
	if in.AccountID == "" {
		return nil, s.toStatus(ctx, ledger.InvalidInput("account_id", "account_id is required"))
	}
	res, err := s.ledger.RefreshBalance(ctx, in.AccountID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return res, nil
}

// grpcCode maps ledger error codes onto gRPC codes. Malformed input is
// InvalidArgument; well-formed requests that break a ledger rule fail
// their precondition.
func grpcCode(c ledger.Code) codes.Code {
	switch c {
	case ledger.CodeNotFound:
		return codes.NotFound
	case ledger.CodeInvalidAmount, ledger.CodeInvalidInput, ledger.CodeInvalidCursor:
		return codes.InvalidArgument
	case ledger.CodeSameAccount, ledger.CodeImmutableField, ledger.CodeEmptySelection,
		ledger.CodeNoChanges, ledger.CodeAlreadyMatched, ledger.CodeReferencedEntity:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// toStatus converts err into a gRPC status carrying the ledger code as
// ErrorInfo.Reason. Unclassified errors are logged and reported without detail.
func (s *Server) toStatus(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	code := ledger.CodeOf(err)
	if code == "" {
		s.logger.ErrorContext(ctx, "rpc failed", "error", err)
		return status.Error(codes.Internal, "internal_error")
	}

	st := status.New(grpcCode(code), err.Error())
	info := &errdetails.ErrorInfo{Reason: string(code), Domain: ErrorDomain}
	var le *ledger.Error
	if errors.As(err, &le) && le.Field != "" {
		info.Metadata = map[string]string{"field": le.Field}
	}
	if detailed, derr := st.WithDetails(info); derr == nil {
		st = detailed
	}
	return st.Err()
}

// ReasonOf returns the ledger code carried by a status error, or "" when
// the error did not come from a ledger failure
func ReasonOf(err error) ledger.Code {
	for _, d := range status.Convert(err).Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == ErrorDomain {
			return ledger.Code(info.Reason)
		}
	}
	return ""
}
