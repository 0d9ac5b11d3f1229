// Package docs registers the Swagger document served at /swagger.
// Regenerate the template with `swag init -g cmd/api/main.go`.
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
    "securityDefinitions": {
        "AdminBearer": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v2/payment/webhook/{source}": {
            "post": {
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["text/plain"],
                "tags": ["Webhook"],
                "summary": "Payment gateway webhook",
                "parameters": [
                    {"type": "string", "name": "source", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Unknown source"},
                    "500": {"description": "Invalid delivery"},
                    "503": {"description": "Busy, redeliver"}
                }
            }
        },
        "/api/v2/payment/donations/{id}/process": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Payment"],
                "summary": "Process Donation",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/admin/gateways/{gateway}/settings": {
            "get": {
                "security": [{"AdminBearer": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Gateway Settings (Admin)",
                "parameters": [{"type": "string", "name": "gateway", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/admin/donations/{id}": {
            "get": {
                "security": [{"AdminBearer": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Get Donation (Admin)",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/admin/donations/{id}/refund": {
            "post": {
                "security": [{"AdminBearer": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Refund Donation (Admin)",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/admin/recurring_donations/{id}/cancel": {
            "post": {
                "security": [{"AdminBearer": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Cancel Subscription (Admin)",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/admin/list_donations": {
            "post": {
                "security": [{"AdminBearer": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "List Donations (Admin)",
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8888",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Mollie Gateway API",
	Description:      "Mollie payments, webhooks and admin actions for donations.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
