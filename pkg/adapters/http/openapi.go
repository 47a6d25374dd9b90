package http

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/domain"
)

// OpenAPIDocument builds an OpenAPI 3 description of a machine's run
// endpoint. The request and response bodies carry the machine's entry and
// exit schemas, so API consumers see exactly what the engine will accept and
// produce.
func OpenAPIDocument(ctx *domain.Context, machine *domain.Machine) (*openapi3.T, error) {
	input, output := loom.IOSchemas(ctx, machine)

	inputSchema, err := toOpenAPISchema(input.Document())
	if err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}
	outputSchema, err := toOpenAPISchema(output.Document())
	if err != nil {
		return nil, fmt.Errorf("output schema: %w", err)
	}

	trailSchema := openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema())

	runRequestSchema := openapi3.NewObjectSchema().
		WithPropertyRef("event", openapi3.NewSchemaRef("", inputSchema)).
		WithProperty("timeout_ms", openapi3.NewIntegerSchema())
	runRequestSchema.Required = []string{"event"}

	runResponseSchema := openapi3.NewObjectSchema().
		WithProperty("run_id", openapi3.NewStringSchema()).
		WithPropertyRef("event", openapi3.NewSchemaRef("", outputSchema)).
		WithPropertyRef("trail", openapi3.NewSchemaRef("", trailSchema))

	errorSchema := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema())

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   machine.ID,
			Version: loom.Version,
		},
		Paths: openapi3.NewPaths(),
	}

	op := openapi3.NewOperation()
	op.OperationID = "run_" + machine.ID
	op.Summary = "Execute one run of " + machine.ID
	op.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithRequired(true).
			WithJSONSchema(runRequestSchema),
	}
	op.AddResponse(200, openapi3.NewResponse().
		WithDescription("run completed").
		WithJSONSchema(runResponseSchema))
	op.AddResponse(400, openapi3.NewResponse().
		WithDescription("rejected event").
		WithJSONSchema(errorSchema))
	op.AddResponse(504, openapi3.NewResponse().
		WithDescription("run timed out").
		WithJSONSchema(errorSchema))

	doc.AddOperation("/machines/"+machine.ID+"/runs", "POST", op)
	return doc, nil
}

// toOpenAPISchema converts a JSON Schema document to the kin-openapi model
// through its JSON form.
func toOpenAPISchema(doc map[string]any) (*openapi3.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out := openapi3.NewSchema()
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return out, nil
}
