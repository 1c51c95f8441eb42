// Package swagger provides API documentation.
// Regenerate with 'swag init -g cmd/server/server.go -o docs/swagger'.
package swagger

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
        "/auth/guest": {
            "post": {
                "tags": ["Auth API"],
                "summary": "Start a guest session",
                "parameters": [{"in": "body", "name": "request", "schema": {"$ref": "#/definitions/requests.GuestLoginRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/user.GuestResult"}}}
            }
        },
        "/auth/signup": {
            "post": {
                "tags": ["Auth API"],
                "summary": "Create an account",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/requests.SignupRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/user.AuthResult"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth API"],
                "summary": "Log in",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/requests.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/user.AuthResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Auth API"],
                "summary": "Current principal",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/chat/message": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Chat API"],
                "summary": "Send a chat message",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/requests.SendMessageRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/chat.MessageEnvelope"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/responses.ErrorResponse"}}
                }
            }
        },
        "/chat/message/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Chat API"],
                "summary": "Get a message",
                "parameters": [{"type": "string", "in": "path", "name": "id", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/chat.MessageEnvelope"}}}
            }
        },
        "/chat/message/{id}/evaluate": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["Chat API"],
                "summary": "Evaluate a message",
                "parameters": [
                    {"type": "string", "in": "path", "name": "id", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/requests.EvaluateMessageRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/chat.MessageEnvelope"}}}
            }
        },
        "/chat/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Chat API"],
                "summary": "List conversations",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/chat/sidebar": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Chat API"],
                "summary": "List sidebar entries",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/chat/conversation/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Chat API"],
                "summary": "Get a conversation",
                "parameters": [{"type": "string", "in": "path", "name": "id", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/chat/conversation/{id}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Chat API"],
                "summary": "List conversation messages",
                "parameters": [{"type": "string", "in": "path", "name": "id", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/chat/ws": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Chat API"],
                "summary": "Chat websocket",
                "parameters": [{"type": "string", "in": "query", "name": "token"}],
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        }
    },
    "definitions": {
        "chat.Content": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "language": {"type": "string"},
                "metadata": {"type": "object", "additionalProperties": true}
            }
        },
        "chat.MessageEnvelope": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "correlationId": {"type": "string"},
                "conversationId": {"type": "string"},
                "userId": {"type": "string"},
                "title": {"type": "string"},
                "sender": {"type": "string"},
                "status": {"type": "string"},
                "content": {"$ref": "#/definitions/chat.Content"},
                "rating": {"type": "integer"},
                "evaluationComment": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "requests.SendMessageRequest": {
            "type": "object",
            "required": ["content"],
            "properties": {
                "conversationId": {"type": "string"},
                "sender": {"type": "string", "enum": ["user", "assistant"]},
                "content": {}
            }
        },
        "requests.EvaluateMessageRequest": {
            "type": "object",
            "required": ["rating"],
            "properties": {
                "rating": {"type": "integer", "minimum": 1, "maximum": 5},
                "evaluationComment": {"type": "string"}
            }
        },
        "requests.GuestLoginRequest": {
            "type": "object",
            "properties": {"name": {"type": "string"}}
        },
        "requests.SignupRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "name": {"type": "string"},
                "guestId": {"type": "string"}
            }
        },
        "requests.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "guestId": {"type": "string"}
            }
        },
        "user.GuestResult": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "user": {"type": "object"}
            }
        },
        "user.AuthResult": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "user": {"type": "object"},
                "conversationMappings": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "responses.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "message": {"type": "string"},
                        "type": {"type": "string"},
                        "code": {"type": "string"},
                        "request_id": {"type": "string"}
                    }
                }
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
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Evaluator Server API",
	Description:      "Chat evaluation backend: conversations, streamed inference replies and message ratings.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
