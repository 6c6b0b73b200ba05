// Package docs is the swagger spec served at /swagger/*.
//
// Regenerate with: swag init -g cmd/grafeo/main.go
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
        "/api/auth/signin": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign in",
                "parameters": [
                    {
                        "description": "Credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.signInRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.tokenResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/auth/fb/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Federated sign in",
                "parameters": [
                    {
                        "description": "Provider token and profile",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.federatedLoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.tokenResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/auth/demo/signin": {
            "post": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Demo sign in",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.tokenResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/auth/signup": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign up",
                "parameters": [
                    {
                        "description": "Account details",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.signUpRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.apiResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/users/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.userSummaryResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Update profile",
                "parameters": [
                    {
                        "description": "Profile fields",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.profileRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.apiResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/users/checkUsernameAvailability": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Username availability",
                "parameters": [
                    {"type": "string", "description": "Username", "name": "username", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.availabilityResponse"}}
                }
            }
        },
        "/api/users/checkEmailAvailability": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Email availability",
                "parameters": [
                    {"type": "string", "description": "Email", "name": "email", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.availabilityResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.signInRequest": {
            "type": "object",
            "required": ["password", "username_or_email"],
            "properties": {
                "password": {"type": "string"},
                "username_or_email": {"type": "string"}
            }
        },
        "handler.federatedLoginRequest": {
            "type": "object",
            "required": ["email", "name", "token", "user_id"],
            "properties": {
                "email": {"type": "string", "maxLength": 40},
                "name": {"type": "string", "maxLength": 40},
                "token": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "handler.signUpRequest": {
            "type": "object",
            "required": ["email", "name", "password", "username"],
            "properties": {
                "email": {"type": "string", "maxLength": 40},
                "name": {"type": "string", "maxLength": 40, "minLength": 1},
                "password": {"type": "string", "maxLength": 20, "minLength": 6},
                "username": {"type": "string", "maxLength": 15, "minLength": 3}
            }
        },
        "handler.profileRequest": {
            "type": "object",
            "required": ["email", "name", "username"],
            "properties": {
                "email": {"type": "string", "maxLength": 40},
                "name": {"type": "string", "maxLength": 40, "minLength": 1},
                "password": {"type": "string", "maxLength": 20, "minLength": 6},
                "username": {"type": "string", "maxLength": 15, "minLength": 3}
            }
        },
        "handler.tokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string"}
            }
        },
        "handler.apiResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "handler.availabilityResponse": {
            "type": "object",
            "properties": {
                "available": {"type": "boolean"}
            }
        },
        "handler.userSummaryResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "demo_expires_at": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "integer"},
                "is_demo": {"type": "boolean"},
                "is_social_login": {"type": "boolean"},
                "name": {"type": "string"},
                "username": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Grafeo API",
	Description:      "Identity and session lifecycle for the Grafeo indicator tracker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
