package formula

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ============================================================
// MCP Tool Interface
// ============================================================

// ToolRequest is one tool call. Expression params use the JSON wire shape
// and are evaluated in float64.
type ToolRequest struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

type ToolResponse struct {
	Result interface{} `json:"result,omitempty"`
	String string      `json:"string,omitempty"`
	Key    string      `json:"key,omitempty"`
	Error  string      `json:"error,omitempty"`
}

var (
	tracerOnce sync.Once
	toolTracer trace.Tracer
)

// getTracer returns the package tracer, created on first use so that a
// provider installed at startup is picked up.
func getTracer() trace.Tracer {
	tracerOnce.Do(func() {
		toolTracer = otel.Tracer("formula.tool")
	})
	return toolTracer
}

// ToolHandler dispatches tool calls with a fixed set of engine options.
// It is safe for concurrent use; every call works on its own trees.
type ToolHandler struct {
	opts Options
}

func NewToolHandler(opts Options) *ToolHandler {
	return &ToolHandler{opts: opts.withDefaults()}
}

var defaultToolHandler = NewToolHandler(Options{})

// HandleToolCall dispatches req with the default options.
func HandleToolCall(ctx context.Context, req ToolRequest) ToolResponse {
	return defaultToolHandler.Handle(ctx, req)
}

// Handle runs one tool call. Failures are reported in ToolResponse.Error.
func (h *ToolHandler) Handle(ctx context.Context, req ToolRequest) ToolResponse {
	_, span := getTracer().Start(ctx, "formula.ToolHandler.Handle",
		trace.WithAttributes(attribute.String("tool", req.Tool)),
	)
	defer span.End()

	resp, err := h.dispatch(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		toolCalls.WithLabelValues(req.Tool, "error").Inc()
		return ToolResponse{Error: err.Error()}
	}
	toolCalls.WithLabelValues(req.Tool, "ok").Inc()
	return resp
}

func (h *ToolHandler) dispatch(req ToolRequest) (ToolResponse, error) {
	getExpr := func(key string) (Node[float64], error) {
		v, ok := req.Params[key]
		if !ok {
			return nil, fmt.Errorf("missing param: %s", key)
		}
		val, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid type for param %s", key)
		}
		return FromJSON[float64](val)
	}
	getObject := func(key string) (map[string]interface{}, error) {
		v, ok := req.Params[key]
		if !ok {
			return map[string]interface{}{}, nil
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("param %s must be an object", key)
		}
		return m, nil
	}
	getCombiner := func(key string) (Combiner, error) {
		v, ok := req.Params[key]
		if !ok {
			return 0, fmt.Errorf("missing param: %s", key)
		}
		switch v {
		case "addition", "+":
			return Addition, nil
		case "multiplication", "*":
			return Multiplication, nil
		}
		return 0, fmt.Errorf("param %s must be \"addition\" or \"multiplication\"", key)
	}
	respond := func(n Node[float64]) ToolResponse {
		return ToolResponse{Result: ToMap(n), String: n.String(), Key: n.Key()}
	}

	switch req.Tool {
	case "print":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{}, err
		}
		return respond(e), nil

	case "simplify", "collect":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{}, err
		}
		f := NewFormulaWithOptions(e, h.opts)
		if req.Tool == "simplify" {
			err = f.Simplify()
		} else {
			err = f.Collect()
		}
		if err != nil {
			return ToolResponse{}, err
		}
		return respond(f.Root()), nil

	case "evaluate":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{}, err
		}
		raw, err := getObject("bindings")
		if err != nil {
			return ToolResponse{}, err
		}
		bindings := make(map[string]Node[float64], len(raw))
		for name, v := range raw {
			m, ok := v.(map[string]interface{})
			if !ok {
				return ToolResponse{}, fmt.Errorf("bindings.%s must be expression object", name)
			}
			donor, err := FromJSON[float64](m)
			if err != nil {
				return ToolResponse{}, fmt.Errorf("bindings.%s: %w", name, err)
			}
			bindings[name] = donor
		}
		return respond(e.Evaluate(bindings)), nil

	case "nevaluate":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{}, err
		}
		raw, err := getObject("values")
		if err != nil {
			return ToolResponse{}, err
		}
		values := make(map[string]float64, len(raw))
		for name, v := range raw {
			f, ok := v.(float64)
			if !ok {
				return ToolResponse{}, fmt.Errorf("values.%s must be a number", name)
			}
			values[name] = f
		}
		precision := h.opts.PowerPrecision
		if p, ok := req.Params["precision"].(float64); ok {
			precision = int(p)
		}
		val, err := NewFormulaWithOptions(e, h.opts).NEvaluatePrecision(values, precision)
		if err != nil {
			return ToolResponse{}, err
		}
		return ToolResponse{Result: val, String: formatValue(val)}, nil

	case "similarity_key":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{}, err
		}
		c, err := getCombiner("combiner")
		if err != nil {
			return ToolResponse{}, err
		}
		key := e.SimilarityKey(c)
		return ToolResponse{Result: key, Key: key}, nil

	case "intersect":
		a, err := getExpr("a")
		if err != nil {
			return ToolResponse{}, err
		}
		b, err := getExpr("b")
		if err != nil {
			return ToolResponse{}, err
		}
		c, err := getCombiner("combiner")
		if err != nil {
			return ToolResponse{}, err
		}
		res, err := Intersect(a, b, c)
		if err != nil {
			return ToolResponse{}, err
		}
		out := map[string]interface{}{
			"remainder1": ToMap(res.Remainder1),
			"remainder2": ToMap(res.Remainder2),
		}
		str := "disjoint"
		if res.Common != nil {
			out["common"] = ToMap(res.Common)
			str = res.Common.String()
		}
		return ToolResponse{Result: out, String: str}, nil

	case "free_variables":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{}, err
		}
		set := FreeVariables(e)
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		return ToolResponse{Result: names}, nil

	case "functions":
		return ToolResponse{Result: RegisteredFunctions()}, nil

	case "mcp_spec":
		return ToolResponse{Result: json.RawMessage(MCPToolSpec())}, nil
	}
	return ToolResponse{}, fmt.Errorf("unknown tool: %s", req.Tool)
}

// ============================================================
// MCP spec
// ============================================================

func MCPToolSpec() string {
	tools := []map[string]interface{}{
		ts("print", "Render an expression and its structural key", []string{"expr"}, map[string]string{"expr": "object"}),
		ts("simplify", "Apply the local simplification rules once", []string{"expr"}, map[string]string{"expr": "object"}),
		ts("collect", "Canonicalize: sort, fold constants, extract common factors and exponents", []string{"expr"}, map[string]string{"expr": "object"}),
		ts("evaluate", "Substitute variables by expressions. bindings={name: expr}", []string{"expr"}, map[string]string{"expr": "object", "bindings": "object"}),
		ts("nevaluate", "Numeric value. values={name: number}", []string{"expr"}, map[string]string{"expr": "object", "values": "object", "precision": "integer"}),
		ts("similarity_key", "Ordering key under a combiner (addition|multiplication)", []string{"expr", "combiner"}, map[string]string{"expr": "object", "combiner": "string"}),
		ts("intersect", "Common part and remainders of a and b under a combiner", []string{"a", "b", "combiner"}, map[string]string{"a": "object", "b": "object", "combiner": "string"}),
		ts("free_variables", "Return variable names", []string{"expr"}, map[string]string{"expr": "object"}),
		ts("functions", "List functions with a numeric implementation", []string{}, map[string]string{}),
		ts("mcp_spec", "Return this tool schema", []string{}, map[string]string{}),
	}
	spec := map[string]interface{}{"tools": tools}
	b, _ := json.MarshalIndent(spec, "", "  ")
	return string(b)
}

func ts(name, description string, required []string, props map[string]string) map[string]interface{} {
	properties := map[string]interface{}{}
	for k, typ := range props {
		properties[k] = map[string]interface{}{"type": typ}
	}
	return map[string]interface{}{
		"name":        name,
		"description": description,
		"inputSchema": map[string]interface{}{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
