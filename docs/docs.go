// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with `swag init -g cmd/service/main.go` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/bridge": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Upgrade to the WebSocket bridge. Clients below platform version 30 are asked for storage permission before the first save.",
                "tags": ["bridge"],
                "summary": "Bridge connection",
                "parameters": [
                    {"type": "integer", "description": "Client platform version", "name": "sdk", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "400": {"description": "Invalid sdk", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}}
                }
            }
        },
        "/images/entry": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Look up an indexed image by its locator",
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "Get image",
                "parameters": [
                    {"type": "string", "description": "Image locator", "name": "locator", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/image.ImageEntryResponse"}},
                    "400": {"description": "Missing locator", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}},
                    "404": {"description": "Image not found", "schema": {"type": "string"}},
                    "503": {"description": "Media index unavailable", "schema": {"type": "string"}}
                }
            }
        },
        "/images": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "List indexed images of a collection, newest first",
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "List images",
                "parameters": [
                    {"type": "string", "description": "Collection (default Pictures)", "name": "collection", "in": "query"},
                    {"type": "integer", "description": "Max entries (default 50, max 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/image.ImageEntryResponse"}}},
                    "400": {"description": "Invalid limit", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}},
                    "503": {"description": "Media index unavailable", "schema": {"type": "string"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Remove a saved image from the media store and the index",
                "tags": ["images"],
                "summary": "Delete image",
                "parameters": [
                    {"type": "string", "description": "Image locator", "name": "locator", "in": "query", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Missing locator", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}},
                    "403": {"description": "Permission denied", "schema": {"type": "string"}},
                    "404": {"description": "Image not found", "schema": {"type": "string"}},
                    "503": {"description": "Media store unavailable", "schema": {"type": "string"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Decode a base64 image and save it into the shared pictures collection",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "Save image",
                "parameters": [
                    {"description": "Image data", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/image.SaveImageRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/image.SaveImageResponse"}},
                    "400": {"description": "Missing or undecodable image", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}},
                    "403": {"description": "Permission denied", "schema": {"type": "string"}},
                    "413": {"description": "Image too large", "schema": {"type": "string"}},
                    "500": {"description": "Error while saving image", "schema": {"type": "string"}},
                    "503": {"description": "Media store unavailable", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "image.ImageEntryResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "locator": {"type": "string"},
                "display_name": {"type": "string"},
                "mime_type": {"type": "string"},
                "collection": {"type": "string"},
                "scanned_at": {"type": "string"}
            }
        },
        "image.SaveImageRequest": {
            "type": "object",
            "properties": {
                "data": {"type": "string"},
                "format": {"type": "string", "example": "png"}
            }
        },
        "image.SaveImageResponse": {
            "type": "object",
            "properties": {
                "locator": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "canvas2image API",
	Description:      "Saves canvas images into the shared pictures collection.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
