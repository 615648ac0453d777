// Package docs holds the swagger document served at /docs.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "bili-live"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/check": {
            "get": {
                "description": "Fetches live status, persists changes and notifies about newly live streamers. Returns the live set, or null when no IDs are tracked.",
                "produces": ["application/json"],
                "tags": ["check"],
                "summary": "Run a check cycle",
                "parameters": [
                    {"type": "string", "description": "Shared secret (or X-Safe-Token header)", "name": "token", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"$ref": "#/definitions/monitor.LiveUp"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/inspect": {
            "get": {
                "description": "Returns the stored live set and the raw tracked ID list.",
                "produces": ["application/json"],
                "tags": ["check"],
                "summary": "Inspect stored state",
                "parameters": [
                    {"type": "string", "description": "Shared secret (or X-Safe-Token header)", "name": "token", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/checker.State"}},
                    "304": {"description": "Not Modified"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/notify/test": {
            "post": {
                "description": "Sends \"test\"/\"success\" through the configured push channel.",
                "produces": ["application/json"],
                "tags": ["notify"],
                "summary": "Send a test notification",
                "parameters": [
                    {"type": "string", "description": "Shared secret (or X-Safe-Token header)", "name": "token", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "checker.State": {
            "type": "object",
            "properties": {
                "liveUps": {"type": "object", "additionalProperties": {"$ref": "#/definitions/monitor.LiveUp"}},
                "up_ids": {"type": "string"}
            }
        },
        "monitor.LiveUp": {
            "type": "object",
            "properties": {
                "roomId": {"type": "integer"},
                "title": {"type": "string"},
                "uname": {"type": "string"}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "detail": {"type": "string"},
                        "message": {"type": "string"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "bili-live API",
	Description:      "Watches a list of Bilibili streamers and pushes a digest when one of them goes live.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
