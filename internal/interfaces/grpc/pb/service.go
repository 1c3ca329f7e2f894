package pb

import (
	"context"

	"google.golang.org/grpc"
)

// ModelServiceServer is the server-side contract of the binary ModelService,
// mirroring TensorFlow Serving's PredictionService: Predict,
// GetModelMetadata, and GetModelStatus.
type ModelServiceServer interface {
	Predict(context.Context, *PredictRequest) (*PredictResponse, error)
	GetModelMetadata(context.Context, *GetModelMetadataRequest) (*GetModelMetadataResponse, error)
	GetModelStatus(context.Context, *GetModelStatusRequest) (*GetModelStatusResponse, error)
}

func _ModelService_Predict_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PredictRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ModelServiceServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/serving.ModelService/Predict"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ModelServiceServer).Predict(ctx, req.(*PredictRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ModelService_GetModelMetadata_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetModelMetadataRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ModelServiceServer).GetModelMetadata(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/serving.ModelService/GetModelMetadata"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ModelServiceServer).GetModelMetadata(ctx, req.(*GetModelMetadataRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ModelService_GetModelStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetModelStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ModelServiceServer).GetModelStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/serving.ModelService/GetModelStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ModelServiceServer).GetModelStatus(ctx, req.(*GetModelStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ModelService_ServiceDesc is the grpc.ServiceDesc a protoc-gen-go-grpc pass
// over serving.proto would emit; handed to grpc.Server.RegisterService the
// same way generated code registers it.
var ModelService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "serving.ModelService",
	HandlerType: (*ModelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Predict",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return _ModelService_Predict_Handler(srv, ctx, dec, interceptor)
			},
		},
		{
			MethodName: "GetModelMetadata",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return _ModelService_GetModelMetadata_Handler(srv, ctx, dec, interceptor)
			},
		},
		{
			MethodName: "GetModelStatus",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				return _ModelService_GetModelStatus_Handler(srv, ctx, dec, interceptor)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "serving.proto",
}

// RegisterModelServiceServer registers impl against s the same way
// generated *_grpc.pb.go code does.
func RegisterModelServiceServer(s grpc.ServiceRegistrar, impl ModelServiceServer) {
	s.RegisterService(&ModelService_ServiceDesc, impl)
}
