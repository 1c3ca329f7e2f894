// Package pb declares the binary-RPC message shapes of the ModelService
// surface: a TensorFlow-Serving-compatible Predict/GetModelMetadata/
// GetModelStatus API. These types are hand-declared rather than
// protoc-generated — no .proto compiler runs as part of this module's
// build — but they carry json struct tags so the hybrid codec registered in
// internal/interfaces/grpc/codec.go can put them on the wire, and their
// field names and nesting mirror the grpc_services.proto layout from the
// original TensorFlow Serving API so a hand-written protoc pass over
// serving.proto would produce a drop-in compatible replacement later.
package pb

// Int64Value wraps a version number. TensorFlow Serving's ModelSpec uses a
// oneof of version number / version label; only the numeric form is
// supported here.
type Int64Value struct {
	Value int64 `json:"value"`
}

// ModelSpec identifies a model and, optionally, one of its versions. A nil
// Version means LATEST.
type ModelSpec struct {
	Name    string       `json:"name"`
	Version *Int64Value  `json:"version,omitempty"`
}

// StatusProto carries the error detail of one version's status.
type StatusProto struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// ModelVersionStatus is one entry of GetModelStatusResponse.
type ModelVersionStatus struct {
	Version int64       `json:"version"`
	State   string      `json:"state"`
	Status  StatusProto `json:"status"`
}

// GetModelStatusRequest requests the status of one or all versions of a model.
type GetModelStatusRequest struct {
	ModelSpec ModelSpec `json:"model_spec"`
}

// GetModelStatusResponse is the reply to GetModelStatus.
type GetModelStatusResponse struct {
	ModelVersionStatus []ModelVersionStatus `json:"model_version_status"`
}

// TensorShapeProto describes a tensor's dimensions, outermost first.
type TensorShapeProto struct {
	Dim []int64 `json:"dim"`
}

// TensorInfo describes one named input or output of a model's signature.
type TensorInfo struct {
	Name        string           `json:"name"`
	DType       string           `json:"dtype"`
	TensorShape TensorShapeProto `json:"tensor_shape"`
}

// SignatureDef is one entry of a model's signature map — for this service,
// always the "serving_default" signature.
type SignatureDef struct {
	Inputs     map[string]TensorInfo `json:"inputs"`
	Outputs    map[string]TensorInfo `json:"outputs"`
	MethodName string                `json:"method_name"`
}

// SignatureDefMap wraps the signature map under the same "signature_def"
// key TensorFlow Serving packs into GetModelMetadataResponse.Metadata.
type SignatureDefMap struct {
	SignatureDef map[string]SignatureDef `json:"signature_def"`
}

// GetModelMetadataRequest requests a model's I/O signature.
type GetModelMetadataRequest struct {
	ModelSpec     ModelSpec `json:"model_spec"`
	MetadataField []string  `json:"metadata_field"`
}

// GetModelMetadataResponse is the reply to GetModelMetadata. Metadata mirrors
// the REST surface's metadata.signature_def wrapper, keyed by metadata field
// name ("signature_def" is the only one this service populates).
type GetModelMetadataResponse struct {
	ModelSpec ModelSpec       `json:"model_spec"`
	Metadata  SignatureDefMap `json:"metadata"`
}

// TensorProto carries one named tensor's values, flattened row-major with
// DType and TensorShape describing how to reconstitute it. Only the
// floating-point value list is populated; this service does not serve
// integer- or string-dtype models.
type TensorProto struct {
	DType       string           `json:"dtype"`
	TensorShape TensorShapeProto `json:"tensor_shape"`
	FloatVal    []float64        `json:"float_val"`
}

// PredictRequest carries one batch of named input tensors, column-oriented
// the way TensorFlow Serving's PredictRequest.inputs works — there is no
// HTTP-style row/column discriminator on the binary surface.
type PredictRequest struct {
	ModelSpec ModelSpec              `json:"model_spec"`
	Inputs    map[string]TensorProto `json:"inputs"`
}

// PredictResponse carries the named output tensors an inference produced.
type PredictResponse struct {
	ModelSpec ModelSpec              `json:"model_spec"`
	Outputs   map[string]TensorProto `json:"outputs"`
}
