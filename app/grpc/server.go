package grpc

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/service"
)

const (
	TokenServiceName    = "inventory.auth.v1.TokenService"
	ValidateTokenMethod = "/" + TokenServiceName + "/ValidateToken"
)

// TokenServiceServer lets other services resolve an access token to the user it belongs to.
type TokenServiceServer interface {
	ValidateToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

// TokenServiceDesc is registered directly; the messages are protobuf well-known types.
var TokenServiceDesc = gogrpc.ServiceDesc{
	ServiceName: TokenServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{
			MethodName: "ValidateToken",
			Handler:    validateTokenHandler,
		},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "inventory/auth/v1/token.proto",
}

func RegisterTokenServiceServer(s gogrpc.ServiceRegistrar, srv TokenServiceServer) {
	s.RegisterService(&TokenServiceDesc, srv)
}

func validateTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).ValidateToken(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: ValidateTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).ValidateToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

type TokenServiceClient interface {
	ValidateToken(ctx context.Context, accessToken string, opts ...gogrpc.CallOption) (*structpb.Struct, error)
}

type tokenServiceClient struct {
	cc gogrpc.ClientConnInterface
}

func NewTokenServiceClient(cc gogrpc.ClientConnInterface) TokenServiceClient {
	return &tokenServiceClient{cc: cc}
}

func (c *tokenServiceClient) ValidateToken(ctx context.Context, accessToken string, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ValidateTokenMethod, wrapperspb.String(accessToken), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*entity.User, error)
}

type TokenServer struct {
	sessions authenticator
}

func NewTokenServer(sessions authenticator) *TokenServer {
	return &TokenServer{sessions: sessions}
}

func (s *TokenServer) ValidateToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	user, err := s.sessions.Authenticate(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			logrus.Debug("Validate token failed (grpc)")
			return invalidToken(), nil
		}
		logrus.WithError(err).Error("Validate token failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	logrus.WithField("user_id", user.ID).Debug("Validate token succeeded (grpc)")
	return structpb.NewStruct(map[string]any{
		"valid":    true,
		"id":       float64(user.ID),
		"username": user.Username,
		"email":    user.Email,
		"role":     string(user.Role),
		"fullName": user.FullName,
		"timezone": user.Timezone,
	})
}

func invalidToken() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"valid": structpb.NewBoolValue(false),
	}}
}
