// Package handlers implements the HTTP-facing handlers for the serving API.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/engine"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/mediator"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// maxPredictBodyBytes caps the size of a decoded Predict request body.
const maxPredictBodyBytes = 32 << 20 // 32MB

// ServingHandler implements the six HTTP/JSON routes: status and metadata
// reads plus Predict, for both the latest version and an explicit one. It
// is a thin adapter over the Request Mediator — all resolution,
// acquisition, and inference logic lives there.
type ServingHandler struct {
	mediator *mediator.Mediator
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
}

// NewServingHandler constructs a ServingHandler. metrics may be nil.
func NewServingHandler(med *mediator.Mediator, metrics *prometheus.AppMetrics, logger logging.Logger) *ServingHandler {
	return &ServingHandler{mediator: med, metrics: metrics, logger: logger}
}

func parseVersionParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "version")
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.InvalidParam("version must be a positive integer").WithDetail(raw)
	}
	return v, nil
}

// GetStatus handles GET /v1/models/{name}.
func (h *ServingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r, chi.URLParam(r, "name"), nil)
}

// GetVersionStatus handles GET /v1/models/{name}/versions/{version}.
func (h *ServingHandler) GetVersionStatus(w http.ResponseWriter, r *http.Request) {
	v, err := parseVersionParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeStatus(w, r, chi.URLParam(r, "name"), &v)
}

func (h *ServingHandler) writeStatus(w http.ResponseWriter, r *http.Request, name string, version *int64) {
	list, err := h.mediator.GetModelStatus(r.Context(), name, version)
	if err != nil {
		h.recordError(name, err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponseBody(list))
}

// GetMetadata handles GET /v1/models/{name}/metadata.
func (h *ServingHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	h.writeMetadata(w, r, chi.URLParam(r, "name"), nil)
}

// GetVersionMetadata handles GET /v1/models/{name}/versions/{version}/metadata.
func (h *ServingHandler) GetVersionMetadata(w http.ResponseWriter, r *http.Request) {
	v, err := parseVersionParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeMetadata(w, r, chi.URLParam(r, "name"), &v)
}

func (h *ServingHandler) writeMetadata(w http.ResponseWriter, r *http.Request, name string, version *int64) {
	md, err := h.mediator.GetModelMetadata(r.Context(), name, version)
	if err != nil {
		h.recordError(name, err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metadataResponseBody(md))
}

// Predict handles POST /v1/models/{name}:predict.
func (h *ServingHandler) Predict(w http.ResponseWriter, r *http.Request) {
	h.predict(w, r, chi.URLParam(r, "name"), nil)
}

// PredictVersion handles POST /v1/models/{name}/versions/{version}:predict.
func (h *ServingHandler) PredictVersion(w http.ResponseWriter, r *http.Request) {
	v, err := parseVersionParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.predict(w, r, chi.URLParam(r, "name"), &v)
}

func (h *ServingHandler) predict(w http.ResponseWriter, r *http.Request, name string, version *int64) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPredictBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("failed to read request body"))
		return
	}

	format, raw, err := decodeFormat(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Metadata is resolved first so a bare (non-map) row or column value can
	// be assigned to the model's sole input field name.
	md, err := h.mediator.GetModelMetadata(r.Context(), name, version)
	if err != nil {
		h.recordError(name, err)
		writeAppError(w, err)
		return
	}

	tensors, batchSize, err := buildTensors(format, raw, md.Inputs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	out, err := h.mediator.Predict(r.Context(), name, version, mediator.PredictInput{Tensors: tensors, BatchSize: batchSize})
	if h.metrics != nil {
		prometheus.RecordPredict(h.metrics, name, err, time.Since(start))
	}
	if err != nil {
		h.recordError(name, err)
		if errors.IsCode(err, errors.CodeInternal) {
			// Matches the published REST surface: a backend inference
			// failure is reported to the client as a malformed-input 400,
			// not a 500 — the caller cannot distinguish the two anyway.
			writeError(w, http.StatusBadRequest, errors.InvalidParam("Malformed input data"))
			return
		}
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, predictResponseBody(format, out.Tensors))
}

func (h *ServingHandler) recordError(model string, err error) {
	if h.metrics == nil {
		return
	}
	prometheus.RecordRequestError(h.metrics, model, errors.GetCode(err).String())
}

// --- status / metadata response shapes (TensorFlow Serving-compatible) ---

type versionStatusDetail struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type modelVersionStatus struct {
	Version string              `json:"version"`
	State   string              `json:"state"`
	Status  versionStatusDetail `json:"status"`
}

type statusBody struct {
	ModelVersionStatus []modelVersionStatus `json:"model_version_status"`
}

func statusResponseBody(list mediator.StatusList) statusBody {
	out := make([]modelVersionStatus, 0, len(list.Versions))
	for _, v := range list.Versions {
		out = append(out, modelVersionStatus{
			Version: strconv.FormatInt(v.Version, 10),
			State:   v.State,
			Status:  versionStatusDetail{ErrorCode: v.ErrorCode, ErrorMessage: v.ErrorMessage},
		})
	}
	return statusBody{ModelVersionStatus: out}
}

type versionValue struct {
	Value string `json:"value"`
}

type modelSpec struct {
	Name    string       `json:"name"`
	Version versionValue `json:"version"`
}

type dimJSON struct {
	Size string `json:"size"`
}

type tensorShapeJSON struct {
	Dim []dimJSON `json:"dim"`
}

type tensorInfoJSON struct {
	Name        string          `json:"name"`
	DType       string          `json:"dtype"`
	TensorShape tensorShapeJSON `json:"tensor_shape"`
}

type signatureDefJSON struct {
	Inputs     map[string]tensorInfoJSON `json:"inputs"`
	Outputs    map[string]tensorInfoJSON `json:"outputs"`
	MethodName string                    `json:"method_name"`
}

type signatureDefMap struct {
	SignatureDef map[string]signatureDefJSON `json:"signature_def"`
}

type metadataWrapper struct {
	SignatureDef signatureDefMap `json:"signature_def"`
}

type metadataBody struct {
	ModelSpec modelSpec       `json:"model_spec"`
	Metadata  metadataWrapper `json:"metadata"`
}

func shapeToJSON(shape []int64) tensorShapeJSON {
	dims := make([]dimJSON, len(shape))
	for i, s := range shape {
		dims[i] = dimJSON{Size: strconv.FormatInt(s, 10)}
	}
	return tensorShapeJSON{Dim: dims}
}

func metadataResponseBody(md mediator.Metadata) metadataBody {
	sig := signatureDefJSON{
		Inputs:     make(map[string]tensorInfoJSON, len(md.Inputs.Fields)),
		Outputs:    make(map[string]tensorInfoJSON, len(md.Outputs.Fields)),
		MethodName: "tensorflow/serving/predict",
	}
	for _, f := range md.Inputs.Fields {
		sig.Inputs[f.Name] = tensorInfoJSON{Name: md.Keys.Inputs[f.Name], DType: f.DType, TensorShape: shapeToJSON(f.Shape)}
	}
	for _, f := range md.Outputs.Fields {
		sig.Outputs[f.Name] = tensorInfoJSON{Name: md.Keys.Outputs[f.Name], DType: f.DType, TensorShape: shapeToJSON(f.Shape)}
	}

	return metadataBody{
		ModelSpec: modelSpec{Name: md.ModelName, Version: versionValue{Value: strconv.FormatInt(md.Version, 10)}},
		Metadata: metadataWrapper{
			SignatureDef: signatureDefMap{SignatureDef: map[string]signatureDefJSON{"serving_default": sig}},
		},
	}
}

// --- Predict input-format discrimination (§6/§9) ---

// format is the tagged input-format discriminator: row-oriented
// ("instances") or column-oriented ("inputs").
type format int

const (
	formatRow format = iota
	formatColumn
)

// decodeFormat inspects a Predict request body once and classifies it as
// row or column input, per spec. Anything else is a 400.
func decodeFormat(body []byte) (format, interface{}, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, nil, errors.InvalidParam("Invalid inputs in request body").WithCause(err)
	}

	if raw, ok := envelope["instances"]; ok {
		var instances []interface{}
		if err := json.Unmarshal(raw, &instances); err != nil {
			return 0, nil, errors.InvalidParam("Invalid inputs in request body").WithCause(err)
		}
		return formatRow, instances, nil
	}

	if raw, ok := envelope["inputs"]; ok {
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return 0, nil, errors.InvalidParam("Invalid inputs in request body").WithCause(err)
		}
		return formatColumn, value, nil
	}

	return 0, nil, errors.InvalidParam("Invalid inputs in request body")
}

// buildTensors converts the decoded request body into named tensors ready
// for the Mediator, resolving a bare (non-map) value to the model's sole
// declared input field.
func buildTensors(f format, raw interface{}, inputs engine.IOSchema) (map[string]engine.Tensor, int, error) {
	var tensors map[string]engine.Tensor
	var err error

	switch f {
	case formatRow:
		tensors, err = tensorsFromRow(raw.([]interface{}))
	case formatColumn:
		tensors, err = tensorsFromColumn(raw)
	}
	if err != nil {
		return nil, 0, err
	}

	tensors, err = resolveSoleInputName(tensors, inputs)
	if err != nil {
		return nil, 0, err
	}

	batchSize := 0
	for _, t := range tensors {
		if len(t.Shape) > 0 {
			batchSize = int(t.Shape[0])
		}
		break
	}
	return tensors, batchSize, nil
}

// soleInputPlaceholder is the temporary key used for a bare scalar/list
// value until the model's real input name is known.
const soleInputPlaceholder = "__sole_input__"

func resolveSoleInputName(tensors map[string]engine.Tensor, inputs engine.IOSchema) (map[string]engine.Tensor, error) {
	t, ok := tensors[soleInputPlaceholder]
	if !ok {
		return tensors, nil
	}
	if len(inputs.Fields) != 1 {
		return nil, errors.InvalidParam("Invalid inputs in request body").WithDetail("model has multiple named inputs")
	}
	return map[string]engine.Tensor{inputs.Fields[0].Name: t}, nil
}

func tensorsFromColumn(raw interface{}) (map[string]engine.Tensor, error) {
	if m, ok := raw.(map[string]interface{}); ok {
		out := make(map[string]engine.Tensor, len(m))
		for name, v := range m {
			t, err := tensorFromValue(v)
			if err != nil {
				return nil, err
			}
			out[name] = t
		}
		return out, nil
	}

	t, err := tensorFromValue(raw)
	if err != nil {
		return nil, err
	}
	return map[string]engine.Tensor{soleInputPlaceholder: t}, nil
}

func tensorsFromRow(instances []interface{}) (map[string]engine.Tensor, error) {
	if len(instances) == 0 {
		return nil, errors.InvalidParam("Invalid inputs in request body").WithDetail("instances is empty")
	}

	if first, ok := instances[0].(map[string]interface{}); ok {
		names := make([]string, 0, len(first))
		for name := range first {
			names = append(names, name)
		}
		sort.Strings(names)

		out := make(map[string]engine.Tensor, len(names))
		for _, name := range names {
			perInstance := make([]interface{}, len(instances))
			for i, inst := range instances {
				m, ok := inst.(map[string]interface{})
				if !ok {
					return nil, errors.InvalidParam("Invalid inputs in request body").WithDetail("inconsistent instance shape")
				}
				v, ok := m[name]
				if !ok {
					return nil, errors.InvalidParam("Invalid inputs in request body").WithDetail("missing key " + name)
				}
				perInstance[i] = v
			}
			t, err := tensorFromValue(perInstance)
			if err != nil {
				return nil, err
			}
			out[name] = t
		}
		return out, nil
	}

	t, err := tensorFromValue(instances)
	if err != nil {
		return nil, err
	}
	return map[string]engine.Tensor{soleInputPlaceholder: t}, nil
}

func tensorFromValue(v interface{}) (engine.Tensor, error) {
	data, shape, err := flattenNumeric(v)
	if err != nil {
		return engine.Tensor{}, err
	}
	return engine.Tensor{DType: "float32", Shape: shape, Data: data}, nil
}

// flattenNumeric recursively flattens nested JSON arrays of numbers into a
// flat slice plus its shape, outermost dimension first.
func flattenNumeric(v interface{}) ([]float64, []int64, error) {
	switch t := v.(type) {
	case float64:
		return []float64{t}, nil, nil
	case []interface{}:
		if len(t) == 0 {
			return []float64{}, []int64{0}, nil
		}
		firstData, innerShape, err := flattenNumeric(t[0])
		if err != nil {
			return nil, nil, err
		}
		data := make([]float64, 0, len(firstData)*len(t))
		data = append(data, firstData...)
		for i := 1; i < len(t); i++ {
			d, s, err := flattenNumeric(t[i])
			if err != nil {
				return nil, nil, err
			}
			if len(s) != len(innerShape) {
				return nil, nil, errors.InvalidParam("Invalid inputs in request body").WithDetail("ragged tensor")
			}
			data = append(data, d...)
		}
		return data, append([]int64{int64(len(t))}, innerShape...), nil
	default:
		return nil, nil, errors.InvalidParam("Invalid inputs in request body").WithDetail("non-numeric value")
	}
}

// --- Predict response shaping, mirroring the request's input format ---

func predictResponseBody(f format, tensors map[string]engine.Tensor) interface{} {
	switch f {
	case formatRow:
		return struct {
			Predictions []interface{} `json:"predictions"`
		}{Predictions: rowsFromTensors(tensors)}
	default:
		return struct {
			Outputs interface{} `json:"outputs"`
		}{Outputs: outputsFromTensors(tensors)}
	}
}

func outputsFromTensors(tensors map[string]engine.Tensor) interface{} {
	if len(tensors) == 1 {
		for _, t := range tensors {
			return unflatten(t.Data, t.Shape)
		}
	}
	out := make(map[string]interface{}, len(tensors))
	for name, t := range tensors {
		out[name] = unflatten(t.Data, t.Shape)
	}
	return out
}

func rowsFromTensors(tensors map[string]engine.Tensor) []interface{} {
	if len(tensors) == 1 {
		for _, t := range tensors {
			return unbatch(t)
		}
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	batch := 0
	perName := make(map[string][]interface{}, len(names))
	for _, name := range names {
		rows := unbatch(tensors[name])
		perName[name] = rows
		batch = len(rows)
	}

	out := make([]interface{}, batch)
	for i := 0; i < batch; i++ {
		row := make(map[string]interface{}, len(names))
		for _, name := range names {
			row[name] = perName[name][i]
		}
		out[i] = row
	}
	return out
}

// unbatch splits a tensor's leading dimension into one value per instance.
func unbatch(t engine.Tensor) []interface{} {
	if len(t.Shape) == 0 {
		rows := make([]interface{}, len(t.Data))
		for i, d := range t.Data {
			rows[i] = d
		}
		return rows
	}

	batch := int(t.Shape[0])
	rest := t.Shape[1:]
	size := 1
	for _, s := range rest {
		size *= int(s)
	}
	if size == 0 {
		size = 1
	}

	rows := make([]interface{}, batch)
	for i := 0; i < batch; i++ {
		chunk := t.Data[i*size : (i+1)*size]
		if len(rest) == 0 {
			rows[i] = chunk[0]
		} else {
			rows[i] = unflatten(chunk, rest)
		}
	}
	return rows
}

// unflatten reconstructs nested JSON arrays from a flat slice plus shape.
func unflatten(data []float64, shape []int64) interface{} {
	if len(shape) == 0 {
		if len(data) == 1 {
			return data[0]
		}
		out := make([]interface{}, len(data))
		for i, d := range data {
			out[i] = d
		}
		return out
	}

	n := int(shape[0])
	rest := shape[1:]
	size := 1
	for _, s := range rest {
		size *= int(s)
	}
	if size == 0 {
		size = 1
	}

	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		chunk := data[i*size : (i+1)*size]
		if len(rest) == 0 {
			out[i] = chunk[0]
		} else {
			out[i] = unflatten(chunk, rest)
		}
	}
	return out
}
