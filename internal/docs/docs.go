// Package docs holds the generated swagger spec consumed by swaggo/http-swagger.
// Normally produced by `swag init`; committed here so /docs/ serves without a
// build step, matching the teacher's http-swagger wiring in internal/api/server.go.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/stormlightlabs/propline",
            "email": "info@stormlightlabs.org"
        },
        "license": {
            "name": "MPL-2.0",
            "url": "https://opensource.org/license/mpl-2-0"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "tags": ["health"],
                "summary": "Process and subsystem health",
                "responses": { "200": { "description": "ok or degraded" } }
            }
        },
        "/status/training": {
            "get": {
                "tags": ["status"],
                "summary": "Scorer registry lifecycle state",
                "responses": { "200": { "description": "ok" } }
            }
        },
        "/status/ingestion": {
            "get": {
                "tags": ["status"],
                "summary": "IngestionEngine cycle state",
                "responses": { "200": { "description": "ok" } }
            }
        },
        "/api/prizepicks/projections": {
            "get": {
                "tags": ["projections"],
                "summary": "List currently bettable projections",
                "responses": { "200": { "description": "ok" } }
            }
        },
        "/api/predictions/prizepicks/enhanced": {
            "get": {
                "tags": ["predictions"],
                "summary": "Ranked, scored projections",
                "responses": { "200": { "description": "ok" } }
            }
        },
        "/api/propollama/chat": {
            "post": {
                "tags": ["propollama"],
                "summary": "Chat with the explanation assistant",
                "responses": { "200": { "description": "ok" } }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "PropLine API",
	Description:      "PrizePicks projection aggregation, ensemble ranking, and PropOllama explanation service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
