// Package docs registers the generated OpenAPI spec. Regenerate with
// swag init (see cmd/dealflowd/docs.go).
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/board": {
            "get": {
                "tags": ["board"],
                "summary": "Board read model: ordered stages with ordered deals and health",
                "parameters": [
                    {"name": "pipeline_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "owner_id", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/stages": {
            "post": {
                "tags": ["stages"],
                "summary": "Create a stage at the tail of the pipeline order",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/stages/order": {
            "put": {
                "tags": ["stages"],
                "summary": "Re-rank all stages of a pipeline, all-or-nothing",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/stages/{id}": {
            "patch": {
                "tags": ["stages"],
                "summary": "Patch stage fields",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["stages"],
                "summary": "Delete a stage, reassigning its deals when non-empty",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "reassign_to", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "412": {"description": "stage not empty"}}
            }
        },
        "/api/v1/stages/{id}/metrics": {
            "get": {
                "tags": ["stages"],
                "summary": "Stage metrics: count, total and probability-weighted value",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/deals": {
            "post": {
                "tags": ["deals"],
                "summary": "Create a deal at the tail of its stage",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/deals/{id}/move": {
            "post": {
                "tags": ["deals"],
                "summary": "Move a deal to a stage and index, atomically",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "concurrent modification, retryable"},
                    "412": {"description": "deal is locked"}
                }
            }
        },
        "/api/v1/deals/{id}/reopen": {
            "post": {
                "tags": ["deals"],
                "summary": "Reopen a closed deal into a non-terminal stage",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/deals/{id}/moves": {
            "get": {
                "tags": ["deals"],
                "summary": "Move history for one deal, newest first",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/feed/ws": {
            "get": {
                "tags": ["feed"],
                "summary": "Change feed: replay from after_seq, then live events",
                "parameters": [
                    {"name": "partition", "in": "query", "type": "string"},
                    {"name": "after_seq", "in": "query", "type": "integer"}
                ],
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Dealflow Pipeline API",
	Description:      "Sales-pipeline workflow engine: stages, deals, atomic moves, derived metrics, and a change feed.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
