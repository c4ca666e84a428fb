package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/voltx/rec-hub/internal/domain"
)

// LedgerServer is the rec.v1.Ledger service.
type LedgerServer interface {
	GetTokenInfo(context.Context, *GetTokenInfoRequest) (*domain.TokenInfo, error)
	GetFacility(context.Context, *GetFacilityRequest) (*domain.Facility, error)
	ListFacilities(context.Context, *ListFacilitiesRequest) (*ListFacilitiesResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*BalanceResponse, error)
	GetEntry(context.Context, *GetEntryRequest) (*domain.Entry, error)
	ListAccountEntries(context.Context, *ListAccountEntriesRequest) (*ListEntriesResponse, error)
	Mint(context.Context, *MintRequest) (*domain.Entry, error)
	Transfer(context.Context, *TransferRequest) (*domain.Entry, error)
	Retire(context.Context, *RetireRequest) (*domain.Entry, error)
}

// ledgerServiceDesc is written by hand in place of protoc output; messages
// are plain structs carried by the JSON codec.
var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetTokenInfo", LedgerServer.GetTokenInfo),
		unary("GetFacility", LedgerServer.GetFacility),
		unary("ListFacilities", LedgerServer.ListFacilities),
		unary("GetBalance", LedgerServer.GetBalance),
		unary("GetEntry", LedgerServer.GetEntry),
		unary("ListAccountEntries", LedgerServer.ListAccountEntries),
		unary("Mint", LedgerServer.Mint),
		unary("Transfer", LedgerServer.Transfer),
		unary("Retire", LedgerServer.Retire),
	},
	Metadata: "rec/v1/ledger",
}

func unary[Req, Resp any](name string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(LedgerServer)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(svc, ctx, req.(*Req))
			})
		},
	}
}
