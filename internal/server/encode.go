package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/copyleftdev/momentum/internal/optimization"
)

// Float is a float64 that survives JSON encoding when it is not finite.
// NaN and the infinities are written as the strings "NaN", "+Inf" and "-Inf".
type Float float64

// MarshalJSON implements json.Marshaler
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (f *Float) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

func floatsOf(v []float64) []Float {
	if v == nil {
		return nil
	}
	out := make([]Float, len(v))
	for i, x := range v {
		out[i] = Float(x)
	}
	return out
}

func pointsOf(points []optimization.Point) [][]Float {
	if points == nil {
		return nil
	}
	out := make([][]Float, len(points))
	for i, p := range points {
		out[i] = floatsOf(p)
	}
	return out
}

// TraceResponse is the wire form of optimization.Trace.
type TraceResponse struct {
	Points     [][]Float `json:"points" yaml:"points"`
	Lookahead  [][]Float `json:"lookahead,omitempty" yaml:"lookahead,omitempty"`
	Norms      []Float   `json:"norms" yaml:"norms"`
	Iterations int       `json:"iterations" yaml:"iterations"`
}

// NewTraceResponse converts a trace to its wire form.
func NewTraceResponse(tr optimization.Trace) *TraceResponse {
	return traceResponse(tr)
}

func traceResponse(tr optimization.Trace) *TraceResponse {
	return &TraceResponse{
		Points:     pointsOf(tr.Points),
		Lookahead:  pointsOf(tr.Lookahead),
		Norms:      floatsOf(tr.Norms),
		Iterations: tr.Iterations,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
	})
}
