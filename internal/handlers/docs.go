package handlers

import (
	"fmt"
	"html"
	"net/http"

	"github.com/asakaida/relcalc/internal/httputil"
	"github.com/asakaida/relcalc/internal/infrastructure/config"
)

const swaggerTemplate = `<!DOCTYPE html>
<html>
<head>
<title>%s - Swagger UI</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
window.ui = SwaggerUIBundle({url: %q, dom_id: "#swagger-ui", deepLinking: true});
</script>
</body>
</html>
`

// DocsHandler serves the Swagger UI page and the OpenAPI document
type DocsHandler struct {
	app      config.AppConfig
	document map[string]interface{}
}

// NewDocsHandler creates a new DocsHandler
func NewDocsHandler(app config.AppConfig) *DocsHandler {
	return &DocsHandler{app: app, document: OpenAPIDocument(app)}
}

// SwaggerUI handles GET DOCS_URL
func (h *DocsHandler) SwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, swaggerTemplate, html.EscapeString(h.app.ProjectName), h.app.OpenAPIURL)
}

// OpenAPI handles GET OPENAPI_URL
func (h *DocsHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.document)
}

type object = map[string]interface{}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func jsonContent(schema object) object {
	return object{"application/json": object{"schema": schema}}
}

func response(description string, schema object) object {
	resp := object{"description": description}
	if schema != nil {
		resp["content"] = jsonContent(schema)
	}
	return resp
}

func errorResponse(description string) object {
	return response(description, ref("ErrorResponse"))
}

func queryParam(name, typ string, required bool) object {
	return object{"name": name, "in": "query", "required": required, "schema": object{"type": typ}}
}

func pathParam(name string) object {
	return object{"name": name, "in": "path", "required": true, "schema": object{"type": "string"}}
}

func arrayOf(schema object) object {
	return object{"type": "array", "items": schema}
}

// OpenAPIDocument builds the OpenAPI 3 description of the HTTP API
func OpenAPIDocument(app config.AppConfig) map[string]interface{} {
	v1 := app.APIV1Str
	bearer := []object{{"bearerAuth": []string{}}}

	paths := object{
		"/": object{"get": object{
			"summary":   "Welcome message",
			"responses": object{"200": response("OK", ref("Message"))},
		}},
		"/health": object{"get": object{
			"summary": "Service and database health",
			"responses": object{
				"200": response("Healthy", ref("Health")),
				"503": response("Database unreachable", ref("Health")),
			},
		}},
		"/api/relationships/": object{"get": object{
			"summary":    "Relationships whose cM range covers a value",
			"parameters": []object{queryParam("cm", "number", true)},
			"responses": object{
				"200": response("OK", object{"type": "object", "properties": object{"results": arrayOf(ref("Relationship"))}}),
				"422": errorResponse("Invalid cm"),
			},
		}},
		"/api/histogram/": object{"get": object{
			"summary":    "Observed cM histogram for a relationship",
			"parameters": []object{queryParam("code", "string", true)},
			"responses": object{
				"200": response("OK", object{"type": "object", "properties": object{
					"histogram": object{"type": "object", "additionalProperties": object{"type": "integer"}},
				}}),
				"404": errorResponse("Unknown relationship"),
			},
		}},
		v1 + "/analyze": object{"post": object{
			"summary":     "Rank candidate relationships for a match",
			"requestBody": object{"required": true, "content": jsonContent(ref("AnalysisRequest"))},
			"security":    []object{{}, {"bearerAuth": []string{}}},
			"responses": object{
				"200": response("Ranked candidates", arrayOf(ref("AnalysisResult"))),
				"422": errorResponse("Invalid request"),
				"429": errorResponse("Rate limit exceeded"),
			},
		}},
		"/api/relationships/calculate": object{"post": object{
			"summary":     "Probability of each relationship from the curves",
			"requestBody": object{"required": true, "content": jsonContent(ref("CalculationRequest"))},
			"responses": object{
				"200": response("OK", arrayOf(ref("CalculationResult"))),
				"404": errorResponse("No relationship covers the value"),
				"422": errorResponse("Invalid request"),
			},
		}},
		"/api/relationships/{code}/histogram": object{"get": object{
			"summary":    "Probability curve of a relationship",
			"parameters": []object{pathParam("code")},
			"responses": object{
				"200": response("OK", ref("CurveHistogram")),
				"404": errorResponse("Unknown relationship"),
			},
		}},
		v1 + "/relationships": object{"get": object{
			"summary":   "All relationships",
			"responses": object{"200": response("OK", arrayOf(ref("Relationship")))},
		}},
		v1 + "/dna-analysis": object{"get": object{
			"summary":   "DNA analysis placeholder",
			"responses": object{"200": response("OK", ref("Message"))},
		}},
		"/api/endogamia/ayuda": object{"get": object{
			"summary":   "Endogamy help document",
			"responses": object{"200": response("OK", object{"type": "object"})},
		}},
		v1 + "/analyses": object{"get": object{
			"summary":    "Analysis history",
			"security":   bearer,
			"parameters": []object{queryParam("skip", "integer", false), queryParam("limit", "integer", false)},
			"responses": object{
				"200": response("OK", arrayOf(ref("Analysis"))),
				"401": errorResponse("Missing or invalid token"),
				"422": errorResponse("Invalid paging"),
			},
		}},
		v1 + "/analyses/{id}": object{"get": object{
			"summary":    "One stored analysis",
			"security":   bearer,
			"parameters": []object{pathParam("id")},
			"responses": object{
				"200": response("OK", ref("Analysis")),
				"401": errorResponse("Missing or invalid token"),
				"404": errorResponse("Analysis not found"),
			},
		}},
	}

	str := object{"type": "string"}
	num := object{"type": "number"}
	integer := object{"type": "integer"}
	boolean := object{"type": "boolean"}

	schemas := object{
		"Message": object{"type": "object", "properties": object{"message": str}},
		"Health": object{"type": "object", "properties": object{"status": str, "database": str}},
		"ErrorResponse": object{"type": "object", "properties": object{"error": str, "error_code": str}},
		"Relationship": object{"type": "object", "properties": relationshipProps(str, num, integer)},
		"AnalysisRequest": object{"type": "object", "required": []string{"cm"}, "properties": object{
			"cm": num, "generacion": integer, "x_inheritance": boolean,
			"segments": integer, "largest_segment": num,
			"sexo": object{"type": "string", "enum": []string{"M", "F"}},
			"endogamia": object{"type": "string", "enum": []string{"none", "light", "moderate", "high", "very_high"}},
		}},
		"AnalysisResult": object{"type": "object", "properties": withProps(relationshipProps(str, num, integer), object{
			"adjustedProb": num, "xPlausible": boolean, "agePlausible": boolean,
		})},
		"CalculationRequest": object{"type": "object", "required": []string{"cm"}, "properties": object{
			"cm": num, "generacion": integer, "x_inheritance": boolean,
			"sexo": object{"type": "string", "enum": []string{"M", "F"}},
		}},
		"CalculationResult": object{"type": "object", "properties": object{
			"code": str, "nombre": str, "abreviado": str,
			"promedio_cm": num, "min_cm": num, "max_cm": num, "probabilidad": num,
		}},
		"CurveHistogram": object{"type": "object", "properties": object{
			"bins": arrayOf(num), "counts": arrayOf(integer),
		}},
		"Analysis": object{"type": "object", "properties": object{
			"id": str, "cm_value": num, "generation": integer, "sex": str, "x_inheritance": boolean,
			"segments": integer, "largest_segment": num, "endogamy_level": str,
			"top_code": str, "top_probability": num, "subject": str,
			"created_at": object{"type": "string", "format": "date-time"},
		}},
	}

	return object{
		"openapi": "3.0.3",
		"info": object{
			"title":       app.ProjectName,
			"version":     app.Version,
			"description": app.Description,
		},
		"servers": []object{{"url": app.BaseURL}},
		"paths":   paths,
		"components": object{
			"schemas": schemas,
			"securitySchemes": object{
				"bearerAuth": object{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
	}
}

func relationshipProps(str, num, integer object) object {
	return object{
		"code": str, "nombre": str, "abreviado": str,
		"promedio_cm": num, "min_cm": num, "max_cm": num, "generacion": integer,
	}
}

func withProps(base, extra object) object {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
