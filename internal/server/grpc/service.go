package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name clients dial.
const ServiceName = "cryptex.v1.CustodyService"

// CustodyServer is the server API for cryptex.v1.CustodyService. Every
// message is a google.protobuf.Struct.
type CustodyServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyOTP(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Whoami(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Upload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Download(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListFiles(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AuditLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(CustodyServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func method(name string, fn unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(CustodyServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(CustodyServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// CustodyServiceDesc describes cryptex.v1.CustodyService for RegisterService.
var CustodyServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CustodyServer)(nil),
	Methods: []grpc.MethodDesc{
		method("Register", CustodyServer.Register),
		method("Login", CustodyServer.Login),
		method("VerifyOTP", CustodyServer.VerifyOTP),
		method("Logout", CustodyServer.Logout),
		method("Whoami", CustodyServer.Whoami),
		method("Upload", CustodyServer.Upload),
		method("Download", CustodyServer.Download),
		method("ListFiles", CustodyServer.ListFiles),
		method("DeleteAccount", CustodyServer.DeleteAccount),
		method("AuditLogs", CustodyServer.AuditLogs),
		method("Stats", CustodyServer.Stats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cryptex/v1/custody.proto",
}

var (
	// publicMethods are reachable without a token.
	publicMethods = map[string]bool{
		fullMethod("Register"):  true,
		fullMethod("Login"):     true,
		fullMethod("VerifyOTP"): true,
	}
	// throttledMethods share the per-peer attempt limiter.
	throttledMethods = map[string]bool{
		fullMethod("Login"):     true,
		fullMethod("VerifyOTP"): true,
	}
)

func isCustodyMethod(full string) bool {
	for _, m := range CustodyServiceDesc.Methods {
		if fullMethod(m.MethodName) == full {
			return true
		}
	}
	return false
}
