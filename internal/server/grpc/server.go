package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/services"
	"github.com/dmitrijs2005/cryptexdrive/internal/timex"
	"github.com/dmitrijs2005/cryptexdrive/internal/worker"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Login attempts per peer: a burst of 5, then one every 2 seconds.
const (
	attemptRate  = rate.Limit(0.5)
	attemptBurst = 5
	peerIdle     = 10 * time.Minute
)

type accountService interface {
	Register(ctx context.Context, username, password, email string) (bool, error)
	IsAdmin(ctx context.Context, username string) (bool, error)
}

type sessionService interface {
	BeginLogin(ctx context.Context, username, password string) error
	CompleteLogin(ctx context.Context, username, code string) (*services.LoginResult, error)
	Logout(ctx context.Context, p *auth.Principal) error
}

type fileService interface {
	Upload(ctx context.Context, p *auth.Principal, name string, data []byte) (*services.UploadResult, error)
	Download(ctx context.Context, owner, name string) ([]byte, error)
	List(ctx context.Context, owner string) ([]string, error)
	DeleteAccount(ctx context.Context, username, password string) error
}

type adminService interface {
	AuditLogs(ctx context.Context, limit int) ([]*models.AuditEvent, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

type tokenValidator interface {
	Validate(ctx context.Context, token string, src auth.Source) (*auth.Principal, error)
}

type auditor interface {
	Record(ctx context.Context, username, action, status string)
}

type GRPCServer struct {
	address  string
	accounts accountService
	sessions sessionService
	files    fileService
	admin    adminService
	tokens   tokenValidator
	auditor  auditor
	limiter  *peerLimiter
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, accounts accountService, sessions sessionService, files fileService,
	admin adminService, tokens tokenValidator, au auditor) (*GRPCServer, error) {
	if a == "" {
		return nil, errors.New("grpc: empty listen address")
	}
	return &GRPCServer{
		address:  a,
		accounts: accounts,
		sessions: sessions,
		files:    files,
		admin:    admin,
		tokens:   tokens,
		auditor:  au,
		limiter:  newPeerLimiter(attemptRate, attemptBurst, peerIdle, timex.SystemClock),
		logger:   l.With("module", "grpc_server"),
	}, nil
}

func (s *GRPCServer) newServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.sourceInterceptor,
		s.throttleInterceptor,
		s.authInterceptor,
	))
	srv.RegisterService(&CustodyServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv, hs
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv, hs := s.newServer()

	go worker.Loop(ctx, "peer-limiter-sweep", peerIdle, s.logger, s.limiter.Sweep)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
