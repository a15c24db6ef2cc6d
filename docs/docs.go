// Package docs holds the swagger document served at /swagger. Regenerate
// with `swag init -g cmd/api/main.go` after changing handler annotations.
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
        "/chat": {
            "post": {
                "description": "Streams the assistant reply as server-sent events. Each ` + "`" + `data:` + "`" + ` line is a JSON object of type content, usage, done or error.",
                "consumes": ["application/json"],
                "produces": ["text/event-stream"],
                "tags": ["chat"],
                "summary": "Stream a completion",
                "parameters": [
                    {"description": "conversation", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CompletionRequestDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/llm.Event"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}}
                }
            }
        },
        "/chats": {
            "get": {
                "description": "Lists every chat, most recently created first.",
                "produces": ["application/json"],
                "tags": ["chats"],
                "summary": "List chats",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Chat"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}}
                }
            }
        },
        "/chats/new": {
            "post": {
                "description": "Creates a chat. The response is a one-element array holding the new chat.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["chats"],
                "summary": "Create chat",
                "parameters": [
                    {"description": "chat", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/dto.CreateChatRequestDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Chat"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}}
                }
            }
        },
        "/chats/{chatId}": {
            "delete": {
                "description": "Deletes a chat together with its messages.",
                "tags": ["chats"],
                "summary": "Delete chat",
                "parameters": [
                    {"type": "string", "description": "chat id", "name": "chatId", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.HealthResponseDTO"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/dto.HealthResponseDTO"}}
                }
            }
        },
        "/messages/new": {
            "post": {
                "description": "Stores a message. Without chatId a new chat is created first.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "Create message",
                "parameters": [
                    {"description": "message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CreateMessageRequestDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Message"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}}
                }
            }
        },
        "/messages/{chatId}": {
            "get": {
                "description": "Returns the chat's messages, newest first.",
                "produces": ["application/json"],
                "tags": ["messages"],
                "summary": "List messages of a chat",
                "parameters": [
                    {"type": "string", "description": "chat id", "name": "chatId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Message"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponseDTO"}}
                }
            }
        }
    },
    "definitions": {
        "dto.CompletionRequestDTO": {
            "type": "object",
            "properties": {
                "instructions": {"type": "string"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/llm.Message"}},
                "model": {"type": "string", "example": "gemini-2.5-flash"}
            }
        },
        "dto.CreateChatRequestDTO": {
            "type": "object",
            "properties": {
                "title": {"type": "string", "example": "Trip planning"}
            }
        },
        "dto.CreateMessageRequestDTO": {
            "type": "object",
            "required": ["role"],
            "properties": {
                "chatId": {"type": "string", "example": "6f1c2d9e-3f0b-4f55-9a59-0d7c5b7d6a10"},
                "content": {"type": "string", "example": "How do goroutines work?"},
                "inputTokens": {"type": "integer", "example": 12},
                "outputTokens": {"type": "integer", "example": 0},
                "role": {"type": "string", "example": "user"}
            }
        },
        "dto.ErrorResponseDTO": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "chat_not_found"}
            }
        },
        "dto.HealthResponseDTO": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "status": {"type": "string", "example": "ok"},
                "storage": {"type": "string", "example": "sqlite"}
            }
        },
        "llm.Event": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "error": {"type": "string"},
                "type": {"type": "string", "example": "content"},
                "usage": {"$ref": "#/definitions/llm.Usage"}
            }
        },
        "llm.Message": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "role": {"type": "string", "example": "user"}
            }
        },
        "llm.Usage": {
            "type": "object",
            "properties": {
                "inputTokens": {"type": "integer"},
                "outputTokens": {"type": "integer"}
            }
        },
        "models.Chat": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "id": {"type": "string"},
                "title": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "models.Message": {
            "type": "object",
            "properties": {
                "chatId": {"type": "string"},
                "content": {"type": "string"},
                "createdAt": {"type": "string"},
                "id": {"type": "string"},
                "inputTokens": {"type": "integer"},
                "outputTokens": {"type": "integer"},
                "role": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "AI Chat API",
	Description:      "Chat persistence and streaming completion API",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
