package graphql

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tournevent/freight/pkg/freight"
	"github.com/tournevent/freight/pkg/geo"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/validator"
	"go.uber.org/zap"
)

//go:embed schema.graphql
var schemaSource string

// Request is a GraphQL-over-HTTP request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is a GraphQL-over-HTTP response body.
type Response struct {
	Data   any     `json:"data"`
	Errors []Error `json:"errors,omitempty"`
}

// Error is a GraphQL error. Classified failures carry their code in
// extensions.code.
type Error struct {
	Message    string         `json:"message"`
	Path       []string       `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Executor parses, validates and executes queries against the embedded schema.
type Executor struct {
	schema   *ast.Schema
	resolver *Resolver
	logger   *otelzap.Logger
}

// NewExecutor loads the schema and binds it to resolver.
func NewExecutor(resolver *Resolver, logger *otelzap.Logger) (*Executor, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSource})
	if err != nil {
		return nil, fmt.Errorf("loading graphql schema: %w", err)
	}
	return &Executor{
		schema:   schema,
		resolver: resolver,
		logger:   logger,
	}, nil
}

// Execute runs one request. The returned status is 400 for requests that do
// not parse or validate and 200 otherwise.
func (e *Executor) Execute(ctx context.Context, req Request) (int, Response) {
	doc, errs := gqlparser.LoadQuery(e.schema, req.Query)
	if len(errs) > 0 {
		out := make([]Error, 0, len(errs))
		for _, gerr := range errs {
			out = append(out, requestError(gerr.Message))
		}
		return http.StatusBadRequest, Response{Errors: out}
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return http.StatusBadRequest, Response{Errors: []Error{requestError("operation not found")}}
	}
	if op.Operation != ast.Query {
		return http.StatusBadRequest, Response{Errors: []Error{requestError(fmt.Sprintf("%s operations are not supported", op.Operation))}}
	}

	vars, gerr := validator.VariableValues(e.schema, op, req.Variables)
	if gerr != nil {
		return http.StatusBadRequest, Response{Errors: []Error{requestError(gerr.Error())}}
	}

	data := make(map[string]any)
	var execErrs []Error
	for _, field := range collectFields(op.SelectionSet, vars) {
		value, err := e.resolveQueryField(ctx, field, vars)
		if err != nil {
			execErrs = append(execErrs, fieldError(err, field.Alias))
			continue
		}
		data[field.Alias] = value
	}

	if len(execErrs) > 0 {
		// Every root field is non-null, so any failure nulls the whole result.
		return http.StatusOK, Response{Data: nil, Errors: execErrs}
	}
	return http.StatusOK, Response{Data: data}
}

func (e *Executor) resolveQueryField(ctx context.Context, field *ast.Field, vars map[string]any) (any, error) {
	switch field.Name {
	case "__typename":
		return "Query", nil
	case "__schema", "__type":
		return nil, freight.NewError(freight.CodeInvalidRequest, "introspection is not supported")
	case "health":
		return e.resolver.Health(ctx)
	case "freightEstimate":
		args := field.ArgumentMap(vars)
		cep, _ := args["cep"].(string)
		est, err := e.resolver.FreightEstimate(ctx, cep, hintFromArg(args["hint"]))
		if err != nil {
			return nil, err
		}
		return project(estimateObject(est), field.SelectionSet, vars), nil
	default:
		return nil, fmt.Errorf("unknown field %q", field.Name)
	}
}

// ServeHTTP implements the GraphQL-over-HTTP POST transport.
func (e *Executor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Response{
			Errors: []Error{requestError("Method not allowed, use POST")},
		})
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Errors: []Error{requestError("Invalid JSON: " + err.Error())},
		})
		return
	}

	status, resp := e.Execute(r.Context(), req)
	if status != http.StatusOK && len(resp.Errors) > 0 {
		e.logger.Ctx(r.Context()).Debug("GraphQL request rejected", zap.String("error", resp.Errors[0].Message))
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestError(msg string) Error {
	return Error{
		Message:    msg,
		Extensions: map[string]any{"code": string(freight.CodeInvalidRequest)},
	}
}

func fieldError(err error, path string) Error {
	var fe *freight.Error
	if !errors.As(err, &fe) {
		fe = freight.Classify(err)
	}
	ext := map[string]any{
		"code":       string(fe.Code),
		"statusCode": fe.StatusCode,
	}
	if len(fe.Details) > 0 {
		ext["details"] = fe.Details
	}
	return Error{Message: fe.Message, Path: []string{path}, Extensions: ext}
}

// collectFields flattens fragments and applies @skip and @include.
func collectFields(set ast.SelectionSet, vars map[string]any) []*ast.Field {
	var fields []*ast.Field
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if included(s.Directives, vars) {
				fields = append(fields, s)
			}
		case *ast.InlineFragment:
			if included(s.Directives, vars) {
				fields = append(fields, collectFields(s.SelectionSet, vars)...)
			}
		case *ast.FragmentSpread:
			if included(s.Directives, vars) && s.Definition != nil {
				fields = append(fields, collectFields(s.Definition.SelectionSet, vars)...)
			}
		}
	}
	return fields
}

func included(directives ast.DirectiveList, vars map[string]any) bool {
	if d := directives.ForName("skip"); d != nil {
		if skip, _ := d.ArgumentMap(vars)["if"].(bool); skip {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if include, _ := d.ArgumentMap(vars)["if"].(bool); !include {
			return false
		}
	}
	return true
}

// project keeps only the selected fields of an object value.
func project(obj map[string]any, set ast.SelectionSet, vars map[string]any) map[string]any {
	out := make(map[string]any)
	for _, field := range collectFields(set, vars) {
		if field.Name == "__typename" {
			if field.ObjectDefinition != nil {
				out[field.Alias] = field.ObjectDefinition.Name
			}
			continue
		}
		value := obj[field.Name]
		if nested, ok := value.(map[string]any); ok && len(field.SelectionSet) > 0 {
			value = project(nested, field.SelectionSet, vars)
		}
		out[field.Alias] = value
	}
	return out
}

func estimateObject(est *freight.Estimate) map[string]any {
	return map[string]any{
		"distanceKm":    est.DistanceKm,
		"valorFrete":    est.Price,
		"cepOrigem":     est.OriginPostalCode.String(),
		"cepDestino":    est.DestinationPostalCode.String(),
		"origemCoords":  coordinateObject(est.OriginCoordinate),
		"destinoCoords": coordinateObject(est.DestinationCoordinate),
	}
}

func coordinateObject(c geo.Coordinate) map[string]any {
	return map[string]any{"lat": c.Lat, "lng": c.Lng}
}

func hintFromArg(v any) geo.Hint {
	m, ok := v.(map[string]any)
	if !ok {
		return geo.Hint{}
	}
	return geo.Hint{Lat: toFloat(m["lat"]), Lng: toFloat(m["lng"])}
}

func toFloat(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}
