package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/voltx/rec-hub/internal/domain"
)

// LedgerClient calls rec.v1.Ledger over a connection, selecting the JSON codec.
type LedgerClient struct {
	conn grpc.ClientConnInterface
}

func NewLedgerClient(conn grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{conn: conn}
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *LedgerClient) GetTokenInfo(ctx context.Context, opts ...grpc.CallOption) (*domain.TokenInfo, error) {
	out := new(domain.TokenInfo)
	if err := c.invoke(ctx, "GetTokenInfo", &GetTokenInfoRequest{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) GetFacility(ctx context.Context, id string, opts ...grpc.CallOption) (*domain.Facility, error) {
	out := new(domain.Facility)
	if err := c.invoke(ctx, "GetFacility", &GetFacilityRequest{ID: id}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) ListFacilities(ctx context.Context, opts ...grpc.CallOption) (*ListFacilitiesResponse, error) {
	out := new(ListFacilitiesResponse)
	if err := c.invoke(ctx, "ListFacilities", &ListFacilitiesRequest{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) GetBalance(ctx context.Context, account domain.Address, opts ...grpc.CallOption) (*BalanceResponse, error) {
	out := new(BalanceResponse)
	if err := c.invoke(ctx, "GetBalance", &GetBalanceRequest{Account: account}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) GetEntry(ctx context.Context, index uint64, opts ...grpc.CallOption) (*domain.Entry, error) {
	out := new(domain.Entry)
	if err := c.invoke(ctx, "GetEntry", &GetEntryRequest{Index: index}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) ListAccountEntries(ctx context.Context, req *ListAccountEntriesRequest, opts ...grpc.CallOption) (*ListEntriesResponse, error) {
	out := new(ListEntriesResponse)
	if err := c.invoke(ctx, "ListAccountEntries", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Mint(ctx context.Context, req *MintRequest, opts ...grpc.CallOption) (*domain.Entry, error) {
	out := new(domain.Entry)
	if err := c.invoke(ctx, "Mint", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Transfer(ctx context.Context, req *TransferRequest, opts ...grpc.CallOption) (*domain.Entry, error) {
	out := new(domain.Entry)
	if err := c.invoke(ctx, "Transfer", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Retire(ctx context.Context, req *RetireRequest, opts ...grpc.CallOption) (*domain.Entry, error) {
	out := new(domain.Entry)
	if err := c.invoke(ctx, "Retire", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
