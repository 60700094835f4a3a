package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "passm.v1.Vault"

// FullMethod returns the "/service/method" path of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// vaultServer is implemented by *GRPCServer; RegisterService checks it.
type vaultServer interface {
	Ping(context.Context, *Empty) (*PingResponse, error)
}

func unary[Req, Resp any](method string, call func(*GRPCServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*GRPCServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*vaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", (*GRPCServer).Ping),
		unary("Register", (*GRPCServer).Register),
		unary("Login", (*GRPCServer).Login),
		unary("Check", (*GRPCServer).Check),
		unary("ChangePassword", (*GRPCServer).ChangePassword),
		unary("Profile", (*GRPCServer).Profile),
		unary("UpdatePhone", (*GRPCServer).UpdatePhone),
		unary("RequestElevation", (*GRPCServer).RequestElevation),
		unary("Elevate", (*GRPCServer).Elevate),
		unary("RequestEmailChange", (*GRPCServer).RequestEmailChange),
		unary("ConfirmEmailChange", (*GRPCServer).ConfirmEmailChange),
		unary("CreateEntry", (*GRPCServer).CreateEntry),
		unary("ListEntries", (*GRPCServer).ListEntries),
		unary("ReadSecret", (*GRPCServer).ReadSecret),
		unary("UpdateEntry", (*GRPCServer).UpdateEntry),
		unary("DeleteEntry", (*GRPCServer).DeleteEntry),
		unary("ExportEntries", (*GRPCServer).ExportEntries),
	},
	Metadata: "passm/v1/vault",
}
