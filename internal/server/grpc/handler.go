package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	authServiceName = "gophauth.v1.AuthService"
	identifyMethod  = "/" + authServiceName + "/Identify"
)

// AuthServiceServer is the server side of gophauth.v1.AuthService. The
// messages are well-known protobuf types, so no generated code is needed.
type AuthServiceServer interface {
	Identify(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: authServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Identify", Handler: identifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/v1/auth.proto",
}

func identifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).Identify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: identifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthServiceServer).Identify(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Identify returns the public view of the caller, like POST /auth/identify.
func (s *GRPCServer) Identify(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	pub, err := s.accounts.Identify(ctx, principalFromContext(ctx))
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return nil, status.Error(codes.Internal, "internal error")
	}

	out, err := publicUserStruct(pub)
	if err != nil {
		s.logger.Error(ctx, "identify encode failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func publicUserStruct(u models.PublicUser) (*structpb.Struct, error) {
	scopes := make([]interface{}, len(u.Scopes))
	for i, sc := range u.Scopes {
		scopes[i] = sc
	}
	fields := map[string]interface{}{
		"username": u.UserName,
		"name":     u.Name,
		"scopes":   scopes,
	}
	if u.Creator != "" {
		fields["creator"] = u.Creator
	}
	if u.Email != "" {
		fields["email"] = u.Email
	}
	return structpb.NewStruct(fields)
}
