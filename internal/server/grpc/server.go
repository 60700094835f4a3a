// Package grpc exposes the vault over gRPC. Messages are plain Go structs
// carried by a JSON codec; the session token travels in the "access_token"
// metadata key.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/dmitrijs2005/passm/internal/server/models"
	"github.com/dmitrijs2005/passm/internal/server/services"
	"google.golang.org/grpc"
)

// Accounts is the account and session API the server needs.
type Accounts interface {
	Register(ctx context.Context, email, phone, rawPassword string) (string, error)
	Login(ctx context.Context, email, rawPassword string) (string, error)
	Verify(token string) (string, error)
	ChangePassword(ctx context.Context, accountID, currentRawPassword, newRawPassword string) error
	Profile(ctx context.Context, accountID string) (*models.Profile, error)
	UpdatePhone(ctx context.Context, accountID, phone string) error
}

// Gate is the one-time-code API the server needs.
type Gate interface {
	RequestElevation(ctx context.Context, accountID string) error
	Elevate(ctx context.Context, accountID, code string) (*models.ElevationGrant, error)
	RequestEmailChange(ctx context.Context, accountID, newEmail string) error
	ConfirmEmailChange(ctx context.Context, accountID, code string) error
}

// Vault is the entry API the server needs.
type Vault interface {
	Create(ctx context.Context, accountID, title, username string, secret []byte) (string, error)
	ListMetadata(ctx context.Context, accountID string) ([]models.EntryMetadata, error)
	ReadSecret(ctx context.Context, accountID, entryID string) (*services.SecretResult, error)
	Update(ctx context.Context, accountID, entryID string, patch models.EntryPatch) error
	Delete(ctx context.Context, accountID, entryID string) error
}

// Exporter uploads an encrypted export.
type Exporter interface {
	Export(ctx context.Context, accountID string) (*services.ExportResult, error)
}

type GRPCServer struct {
	address  string
	accounts Accounts
	gate     Gate
	vault    Vault
	exporter Exporter
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, accounts Accounts, gate Gate, vault Vault, exporter Exporter) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		accounts: accounts,
		gate:     gate,
		vault:    vault,
		exporter: exporter,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(Codec{}),
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
	)
	srv.RegisterService(&serviceDesc, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
