// Package services implements the binary-RPC ModelService against the
// Request Mediator, translating between the hand-declared pb messages and
// the mediator's wire-agnostic types.
package services

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyIP-Intelligence/internal/interfaces/grpc/pb"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/engine"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/mediator"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// ServingService implements pb.ModelServiceServer over a Request Mediator,
// the binary-RPC counterpart of handlers.ServingHandler.
type ServingService struct {
	mediator *mediator.Mediator
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
}

// NewServingService constructs a ServingService. metrics may be nil.
func NewServingService(med *mediator.Mediator, metrics *prometheus.AppMetrics, logger logging.Logger) *ServingService {
	return &ServingService{mediator: med, metrics: metrics, logger: logger}
}

func (s *ServingService) recordError(model string, err error) {
	if s.metrics == nil {
		return
	}
	prometheus.RecordRequestError(s.metrics, model, errors.GetCode(err).String())
}

// toGRPCStatus translates a pkg/errors AppError into the matching gRPC
// status code. It mirrors handlers.writeAppError's HTTP mapping but in
// codes.Code terms, since the binary surface has no HTTP status to reuse.
func toGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	code := errors.GetCode(err)
	var grpcCode codes.Code
	switch code {
	case errors.CodeInvalidParam:
		grpcCode = codes.InvalidArgument
	case errors.CodeUnauthorized:
		grpcCode = codes.Unauthenticated
	case errors.CodeForbidden:
		grpcCode = codes.PermissionDenied
	case errors.CodeNotFound:
		grpcCode = codes.NotFound
	case errors.CodeConflict:
		grpcCode = codes.AlreadyExists
	case errors.CodeRateLimit:
		grpcCode = codes.ResourceExhausted
	case errors.CodeModelNotReady, errors.CodeModelUnloadPending:
		grpcCode = codes.Unavailable
	case errors.CodeInferenceTimeout:
		grpcCode = codes.DeadlineExceeded
	default:
		grpcCode = codes.Internal
	}
	return status.Error(grpcCode, err.Error())
}

func versionPtr(spec pb.ModelSpec) *int64 {
	if spec.Version == nil {
		return nil
	}
	v := spec.Version.Value
	return &v
}

// GetModelStatus implements pb.ModelServiceServer.
func (s *ServingService) GetModelStatus(ctx context.Context, req *pb.GetModelStatusRequest) (*pb.GetModelStatusResponse, error) {
	list, err := s.mediator.GetModelStatus(ctx, req.ModelSpec.Name, versionPtr(req.ModelSpec))
	if err != nil {
		s.recordError(req.ModelSpec.Name, err)
		return nil, toGRPCStatus(err)
	}
	return &pb.GetModelStatusResponse{ModelVersionStatus: toVersionStatuses(list)}, nil
}

func toVersionStatuses(list mediator.StatusList) []pb.ModelVersionStatus {
	out := make([]pb.ModelVersionStatus, 0, len(list.Versions))
	for _, v := range list.Versions {
		out = append(out, pb.ModelVersionStatus{
			Version: v.Version,
			State:   v.State,
			Status:  pb.StatusProto{ErrorCode: v.ErrorCode, ErrorMessage: v.ErrorMessage},
		})
	}
	return out
}

// GetModelMetadata implements pb.ModelServiceServer.
func (s *ServingService) GetModelMetadata(ctx context.Context, req *pb.GetModelMetadataRequest) (*pb.GetModelMetadataResponse, error) {
	md, err := s.mediator.GetModelMetadata(ctx, req.ModelSpec.Name, versionPtr(req.ModelSpec))
	if err != nil {
		s.recordError(req.ModelSpec.Name, err)
		return nil, toGRPCStatus(err)
	}
	return toMetadataResponse(md), nil
}

func toMetadataResponse(md mediator.Metadata) *pb.GetModelMetadataResponse {
	sig := pb.SignatureDef{
		Inputs:     make(map[string]pb.TensorInfo, len(md.Inputs.Fields)),
		Outputs:    make(map[string]pb.TensorInfo, len(md.Outputs.Fields)),
		MethodName: "tensorflow/serving/predict",
	}
	for _, f := range md.Inputs.Fields {
		sig.Inputs[f.Name] = pb.TensorInfo{Name: md.Keys.Inputs[f.Name], DType: f.DType, TensorShape: pb.TensorShapeProto{Dim: f.Shape}}
	}
	for _, f := range md.Outputs.Fields {
		sig.Outputs[f.Name] = pb.TensorInfo{Name: md.Keys.Outputs[f.Name], DType: f.DType, TensorShape: pb.TensorShapeProto{Dim: f.Shape}}
	}
	return &pb.GetModelMetadataResponse{
		ModelSpec: pb.ModelSpec{Name: md.ModelName, Version: &pb.Int64Value{Value: md.Version}},
		Metadata:  pb.SignatureDefMap{SignatureDef: map[string]pb.SignatureDef{"serving_default": sig}},
	}
}

// Predict implements pb.ModelServiceServer. Unlike the HTTP surface there is
// no row/column discriminator to preserve — the binary wire is
// column-oriented only, matching TensorFlow Serving's PredictRequest.inputs.
func (s *ServingService) Predict(ctx context.Context, req *pb.PredictRequest) (*pb.PredictResponse, error) {
	name := req.ModelSpec.Name
	tensors := fromTensorProtos(req.Inputs)
	batchSize := 0
	for _, t := range tensors {
		if len(t.Shape) > 0 {
			batchSize = int(t.Shape[0])
		}
		break
	}

	start := time.Now()
	out, err := s.mediator.Predict(ctx, name, versionPtr(req.ModelSpec), mediator.PredictInput{Tensors: tensors, BatchSize: batchSize})
	if s.metrics != nil {
		prometheus.RecordPredict(s.metrics, name, err, time.Since(start))
	}
	if err != nil {
		s.recordError(name, err)
		if errors.IsCode(err, errors.CodeInternal) {
			return nil, status.Error(codes.InvalidArgument, "Malformed input data")
		}
		return nil, toGRPCStatus(err)
	}

	return &pb.PredictResponse{
		ModelSpec: pb.ModelSpec{Name: out.ModelName, Version: &pb.Int64Value{Value: out.Version}},
		Outputs:   toTensorProtos(out.Tensors),
	}, nil
}

func fromTensorProtos(in map[string]pb.TensorProto) map[string]engine.Tensor {
	out := make(map[string]engine.Tensor, len(in))
	for name, t := range in {
		dtype := t.DType
		if dtype == "" {
			dtype = "float32"
		}
		out[name] = engine.Tensor{DType: dtype, Shape: t.TensorShape.Dim, Data: t.FloatVal}
	}
	return out
}

func toTensorProtos(in map[string]engine.Tensor) map[string]pb.TensorProto {
	out := make(map[string]pb.TensorProto, len(in))
	for name, t := range in {
		out[name] = pb.TensorProto{DType: t.DType, TensorShape: pb.TensorShapeProto{Dim: t.Shape}, FloatVal: t.Data}
	}
	return out
}
