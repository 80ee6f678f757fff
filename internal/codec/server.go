package codec

import (
	"context"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// #region service-desc
type modelServer interface {
	LogLikelihood(context.Context, *structpb.Struct) (*wrapperspb.DoubleValue, error)
}

var modelServiceDesc = grpc.ServiceDesc{
	ServiceName: "belief.v1.ModelService",
	HandlerType: (*modelServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LogLikelihood", Handler: logLikelihoodHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "belief/v1/model.proto",
}

func logLikelihoodHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(modelServer).LogLikelihood(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: logLikelihoodMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(modelServer).LogLikelihood(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service-desc

// #region model-service
type modelService struct {
	model belief.Model
}

// RegisterModelServer serves m as belief.v1.ModelService on s.
func RegisterModelServer(s grpc.ServiceRegistrar, m belief.Model) {
	s.RegisterService(&modelServiceDesc, &modelService{model: m})
}

func (s *modelService) LogLikelihood(_ context.Context, req *structpb.Struct) (*wrapperspb.DoubleValue, error) {
	fields := req.GetFields()
	var args [3]float64
	for i, name := range []string{"particle", "control", "disturbance"} {
		v, ok := fields[name]
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "missing field %q", name)
		}
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "field %q is not a number", name)
		}
		args[i] = n.NumberValue
	}
	return wrapperspb.Double(s.model.LogLikelihood(args[0], args[1], args[2])), nil
}

// #endregion model-service
