package server

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/voltx/rec-hub/internal/adapter/grpc/interceptors"
	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
	"github.com/voltx/rec-hub/pkg/config"
)

const ServiceName = "rec.v1.Ledger"

// PublicMethods can be called without credentials.
var PublicMethods = []string{
	"/" + ServiceName + "/GetTokenInfo",
	"/" + ServiceName + "/GetFacility",
	"/" + ServiceName + "/ListFacilities",
	"/" + ServiceName + "/GetBalance",
	"/" + ServiceName + "/GetEntry",
	"/" + ServiceName + "/ListAccountEntries",
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/Watch",
}

type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	log    *zap.Logger
}

var _ LedgerServer = (*LedgerGrpcService)(nil)

// LedgerGrpcService exposes the ledger over gRPC with the JSON codec.
type LedgerGrpcService struct {
	ledger ports.LedgerService
	log    *zap.Logger
}

func NewGRPCServer(ledger ports.LedgerService, auth ports.AuthService, cfg config.GRPCConfig, log *zap.Logger) *GRPCServer {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			interceptors.UnaryMetricsInterceptor(),
			interceptors.UnaryLoggingInterceptor(log),
			interceptors.UnaryErrorInterceptor(log),
			interceptors.UnaryAuthInterceptor(auth, PublicMethods...),
		),
	}
	if cfg.MaxConnections > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.MaxConnections)))
	}
	s := grpc.NewServer(opts...)

	s.RegisterService(&ledgerServiceDesc, &LedgerGrpcService{ledger: ledger, log: log})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return &GRPCServer{
		server: s,
		health: hs,
		log:    log,
	}
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.server.Serve(lis)
}

func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func (s *LedgerGrpcService) GetTokenInfo(ctx context.Context, _ *GetTokenInfoRequest) (*domain.TokenInfo, error) {
	info := s.ledger.TokenInfo(ctx)
	return &info, nil
}

func (s *LedgerGrpcService) GetFacility(ctx context.Context, req *GetFacilityRequest) (*domain.Facility, error) {
	return s.ledger.GetFacility(ctx, req.ID)
}

func (s *LedgerGrpcService) ListFacilities(ctx context.Context, _ *ListFacilitiesRequest) (*ListFacilitiesResponse, error) {
	return &ListFacilitiesResponse{Facilities: s.ledger.ListFacilities(ctx)}, nil
}

func (s *LedgerGrpcService) GetBalance(ctx context.Context, req *GetBalanceRequest) (*BalanceResponse, error) {
	return &BalanceResponse{
		Account: req.Account,
		Active:  s.ledger.BalanceOf(ctx, req.Account),
		Retired: s.ledger.RetiredBalanceOf(ctx, req.Account),
	}, nil
}

func (s *LedgerGrpcService) GetEntry(ctx context.Context, req *GetEntryRequest) (*domain.Entry, error) {
	return s.ledger.GetEntry(ctx, req.Index)
}

func (s *LedgerGrpcService) ListAccountEntries(ctx context.Context, req *ListAccountEntriesRequest) (*ListEntriesResponse, error) {
	indices := s.ledger.AccountEntryIndices(ctx, req.Account)
	limit := req.Limit
	if limit == 0 || limit > 500 {
		limit = 500
	}

	resp := &ListEntriesResponse{Total: uint64(len(indices)), Entries: []domain.Entry{}}
	for i := req.Offset; i < resp.Total && uint64(len(resp.Entries)) < limit; i++ {
		entry, err := s.ledger.GetEntry(ctx, indices[i])
		if err != nil {
			return nil, err
		}
		resp.Entries = append(resp.Entries, *entry)
	}
	return resp, nil
}

func (s *LedgerGrpcService) Mint(ctx context.Context, req *MintRequest) (*domain.Entry, error) {
	return s.ledger.Mint(ctx, interceptors.CallerFromContext(ctx), domain.MintRequest{
		To:          req.To,
		AmountMWh:   req.AmountMWh,
		FacilityID:  req.FacilityID,
		Metadata:    req.Metadata,
		GeneratedAt: req.GeneratedAt,
	})
}

func (s *LedgerGrpcService) Transfer(ctx context.Context, req *TransferRequest) (*domain.Entry, error) {
	caller := interceptors.CallerFromContext(ctx)
	from := caller
	if req.From != nil {
		from = *req.From
	}
	return s.ledger.Transfer(ctx, caller, from, req.To, req.Amount)
}

func (s *LedgerGrpcService) Retire(ctx context.Context, req *RetireRequest) (*domain.Entry, error) {
	caller := interceptors.CallerFromContext(ctx)
	account := caller
	if req.Account != nil {
		account = *req.Account
	}
	return s.ledger.Retire(ctx, caller, account, req.Amount, req.Reason)
}
