// Package client is a thin gRPC client for the passm service.
package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passm/internal/common"
	gs "github.com/dmitrijs2005/passm/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	conn        *grpc.ClientConn
	timeout     time.Duration
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if c.accessToken != "" {
		ctx = withAccessToken(ctx, c.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient prepares a connection to endpoint. No I/O happens until the
// first call.
func NewGRPCClient(endpoint string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{timeout: timeout}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(gs.Codec{})),
	}, opts...)
	opts = append(opts, grpc.WithUnaryInterceptor(c.accessTokenInterceptor))

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) LoggedIn() bool {
	return c.accessToken != ""
}

func (c *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.conn.Invoke(ctx, gs.FullMethod(method), in, out); err != nil {
		return mapError(err)
	}
	return nil
}

// mapError turns transport failures into the client's sentinel errors and
// keeps the server message for everything else.
func mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable:
		if st.Message() == common.ErrDeliveryFailed.Error() {
			return common.ErrDeliveryFailed
		}
		return ErrUnavailable
	case codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.Unauthenticated:
		if st.Message() == common.ErrInvalidCredentials.Error() {
			return common.ErrInvalidCredentials
		}
		return ErrUnauthorized
	case codes.PermissionDenied:
		if st.Message() == common.ErrElevationRequired.Error() {
			return ErrElevationRequired
		}
	case codes.NotFound:
		return ErrNotFound
	}
	return status.Error(st.Code(), st.Message())
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	return c.invoke(ctx, "Ping", &gs.Empty{}, &gs.PingResponse{})
}

func (c *GRPCClient) Register(ctx context.Context, email, phone, password string) error {
	return c.invoke(ctx, "Register", &gs.RegisterRequest{Email: email, Phone: phone, Password: password}, &gs.RegisterResponse{})
}

// Login stores the session token for later calls.
func (c *GRPCClient) Login(ctx context.Context, email, password string) error {
	var resp gs.LoginResponse
	if err := c.invoke(ctx, "Login", &gs.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return err
	}
	c.accessToken = resp.AccessToken
	return nil
}

func (c *GRPCClient) Logout() {
	c.accessToken = ""
}

func (c *GRPCClient) Profile(ctx context.Context) (*gs.ProfileResponse, error) {
	var resp gs.ProfileResponse
	if err := c.invoke(ctx, "Profile", &gs.Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) ChangePassword(ctx context.Context, current, next string) error {
	return c.invoke(ctx, "ChangePassword", &gs.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}, &gs.Empty{})
}

func (c *GRPCClient) RequestElevation(ctx context.Context) error {
	return c.invoke(ctx, "RequestElevation", &gs.Empty{}, &gs.Empty{})
}

func (c *GRPCClient) Elevate(ctx context.Context, code string) (time.Time, error) {
	var resp gs.ElevateResponse
	if err := c.invoke(ctx, "Elevate", &gs.CodeRequest{Code: code}, &resp); err != nil {
		return time.Time{}, err
	}
	return resp.ExpiresAt, nil
}

func (c *GRPCClient) List(ctx context.Context) ([]gs.EntryMetadata, error) {
	var resp gs.ListEntriesResponse
	if err := c.invoke(ctx, "ListEntries", &gs.Empty{}, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *GRPCClient) Create(ctx context.Context, title, username string, secret []byte) (string, error) {
	var resp gs.CreateEntryResponse
	if err := c.invoke(ctx, "CreateEntry", &gs.CreateEntryRequest{Title: title, Username: username, Secret: secret}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *GRPCClient) Read(ctx context.Context, id string) (*gs.ReadSecretResponse, error) {
	var resp gs.ReadSecretResponse
	if err := c.invoke(ctx, "ReadSecret", &gs.EntryRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) Update(ctx context.Context, req *gs.UpdateEntryRequest) error {
	return c.invoke(ctx, "UpdateEntry", req, &gs.Empty{})
}

func (c *GRPCClient) Delete(ctx context.Context, id string) error {
	return c.invoke(ctx, "DeleteEntry", &gs.EntryRequest{ID: id}, &gs.Empty{})
}

func (c *GRPCClient) Export(ctx context.Context) (*gs.ExportEntriesResponse, error) {
	var resp gs.ExportEntriesResponse
	if err := c.invoke(ctx, "ExportEntries", &gs.Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
