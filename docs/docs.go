// Package docs содержит swagger-описание API для /docs.
// Файл собирается командой swag init -g cmd/thomas-api/main.go.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/vote": {
            "post": {
                "description": "Принимает уведомление о голосе от discordbotlist или top.gg и начисляет голос и опыт.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Votes"],
                "summary": "Засчитать голос",
                "parameters": [
                    {"type": "string", "description": "Токен площадки", "name": "Authorization", "in": "header", "required": true},
                    {"description": "Уведомление площадки", "name": "request", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Неизвестная форма или пользователь", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Неверный токен площадки", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/kofi": {
            "post": {
                "description": "Принимает уведомление Ko-fi (поле формы data с JSON) и сохраняет подписку.",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["Webhooks"],
                "summary": "Вебхук Ko-fi",
                "parameters": [
                    {"type": "string", "description": "JSON уведомления", "name": "data", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Некорректное уведомление", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Неверный verification_token", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "409": {"description": "Подписка уже сохранена", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/subscriptions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Возвращает подписки, купленные на почту из токена.",
                "produces": ["application/json"],
                "tags": ["Subscriptions"],
                "summary": "Список подписок",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "401": {"description": "Пользователь не авторизован", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/subscriptions/{id}/activate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Привязывает подписку к пользователю из токена и выдаёт тариф.",
                "produces": ["application/json"],
                "tags": ["Subscriptions"],
                "summary": "Активировать подписку",
                "parameters": [
                    {"type": "string", "description": "ID подписки", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Подписка не найдена", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "409": {"description": "Подписка уже активирована", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "410": {"description": "Срок подписки истёк", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/users/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Возвращает голоса, опыт и действующий тариф пользователя из токена.",
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Профиль пользователя",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Пользователь не найден", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "response.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid request body"},
                "status": {"type": "string", "example": "Error"}
            }
        },
        "response.Response": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"type": "string"},
                "status": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Thomas API",
	Description:      "Голоса, опыт и подписки бота Thomas",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
