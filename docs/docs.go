// Package docs 提供 Swagger 文档，由 swag 格式的注释整理而成.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/": {"get": {"tags": ["system"], "summary": "服务存活", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.RootResponse"}}}}},
        "/auth/register": {"post": {"tags": ["auth"], "summary": "注册",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.RegisterRequest"}}],
            "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/types.UserResponse"}}, "400": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "登录",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.LoginRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TokenResponse"}}, "401": {"$ref": "#/responses/Error"}, "403": {"$ref": "#/responses/Error"}}}},
        "/auth/refresh": {"post": {"tags": ["auth"], "summary": "刷新令牌",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.RefreshRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TokenResponse"}}, "401": {"$ref": "#/responses/Error"}}}},
        "/files": {
            "post": {"tags": ["files"], "summary": "上传文件", "security": [{"BearerAuth": []}], "consumes": ["multipart/form-data"],
                "parameters": [{"in": "formData", "name": "file", "type": "file", "required": true}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/types.UploadResponse"}}, "400": {"$ref": "#/responses/Error"}, "413": {"$ref": "#/responses/Error"}}},
            "get": {"tags": ["files"], "summary": "文件列表", "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "file_type", "type": "string", "enum": ["csv", "excel", "pdf", "json", "text"]},
                    {"in": "query", "name": "status", "type": "string", "enum": ["uploading", "processing", "ready", "failed"]},
                    {"in": "query", "name": "limit", "type": "integer", "minimum": 1, "maximum": 100},
                    {"in": "query", "name": "offset", "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.FileListResponse"}}}}
        },
        "/files/search": {"get": {"tags": ["files"], "summary": "搜索文件", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "query", "name": "q", "type": "string", "required": true}, {"in": "query", "name": "limit", "type": "integer"}, {"in": "query", "name": "offset", "type": "integer"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.FileListResponse"}}, "400": {"$ref": "#/responses/Error"}}}},
        "/files/stats": {"get": {"tags": ["files"], "summary": "文件统计", "security": [{"BearerAuth": []}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatsResponse"}}}}},
        "/files/{id}": {
            "get": {"tags": ["files"], "summary": "解析结果", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "header", "name": "If-None-Match", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ContentResponse"}}, "304": {"description": "Not Modified"}, "404": {"$ref": "#/responses/Error"}, "409": {"description": "Not ready", "schema": {"$ref": "#/definitions/types.NotReadyResponse"}}}},
            "delete": {"tags": ["files"], "summary": "删除文件", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.DeleteResponse"}}, "404": {"$ref": "#/responses/Error"}}}
        },
        "/files/{id}/progress": {"get": {"tags": ["files"], "summary": "处理进度", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ProgressResponse"}}, "404": {"$ref": "#/responses/Error"}}}},
        "/ws/{id}": {"get": {"tags": ["files"], "summary": "进度推送 (WebSocket)", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "query", "name": "token", "type": "string"}],
            "responses": {"101": {"description": "Switching Protocols"}, "401": {"$ref": "#/responses/Error"}, "404": {"$ref": "#/responses/Error"}}}},
        "/users/me": {"get": {"tags": ["users"], "summary": "当前用户", "security": [{"BearerAuth": []}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UserResponse"}}, "401": {"$ref": "#/responses/Error"}}}},
        "/users": {"get": {"tags": ["users"], "summary": "用户列表", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "query", "name": "limit", "type": "integer"}, {"in": "query", "name": "offset", "type": "integer"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UserListResponse"}}, "403": {"$ref": "#/responses/Error"}}}},
        "/health/db": {"get": {"tags": ["health"], "summary": "数据库健康", "responses": {"200": {"$ref": "#/responses/Health"}, "503": {"$ref": "#/responses/Health"}}}},
        "/health/mq": {"get": {"tags": ["health"], "summary": "消息总线健康", "responses": {"200": {"$ref": "#/responses/Health"}, "503": {"$ref": "#/responses/Health"}}}},
        "/health/kv": {"get": {"tags": ["health"], "summary": "键值存储健康", "responses": {"200": {"$ref": "#/responses/Health"}, "503": {"$ref": "#/responses/Health"}}}},
        "/health/s3": {"get": {"tags": ["health"], "summary": "对象存储健康", "responses": {"200": {"$ref": "#/responses/Health"}, "503": {"$ref": "#/responses/Health"}}}},
        "/admin/scheduler/jobs": {"get": {"tags": ["admin"], "summary": "定时任务列表", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "403": {"$ref": "#/responses/Error"}}}},
        "/admin/scheduler/jobs/{name}/run": {"post": {"tags": ["admin"], "summary": "立即执行任务", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "name", "type": "string", "required": true}],
            "responses": {"202": {"description": "Accepted"}, "404": {"$ref": "#/responses/Error"}}}}
    },
    "responses": {
        "Error": {"description": "Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
        "Health": {"description": "Health", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
    },
    "definitions": {
        "types.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}}},
        "types.HealthResponse": {"type": "object", "properties": {"component": {"type": "string"}, "status": {"type": "string"}, "error": {"type": "string"}}},
        "types.RootResponse": {"type": "object", "properties": {"success": {"type": "boolean"}, "message": {"type": "string"},
            "data": {"type": "object", "properties": {"name": {"type": "string"}, "version": {"type": "string"}, "features": {"type": "array", "items": {"type": "string"}}}}}},
        "types.RegisterRequest": {"type": "object", "required": ["username", "password"], "properties": {
            "username": {"type": "string", "minLength": 3, "maxLength": 50}, "email": {"type": "string"},
            "full_name": {"type": "string", "maxLength": 100}, "password": {"type": "string", "minLength": 8, "maxLength": 100}}},
        "types.LoginRequest": {"type": "object", "required": ["username", "password"], "properties": {"username": {"type": "string"}, "password": {"type": "string"}}},
        "types.RefreshRequest": {"type": "object", "required": ["refresh_token"], "properties": {"refresh_token": {"type": "string"}}},
        "types.TokenResponse": {"type": "object", "properties": {"access_token": {"type": "string"}, "refresh_token": {"type": "string"}, "token_type": {"type": "string"}, "expires_in": {"type": "integer"}}},
        "types.UserResponse": {"type": "object", "properties": {"id": {"type": "integer"}, "username": {"type": "string"}, "email": {"type": "string"}, "full_name": {"type": "string"},
            "is_active": {"type": "boolean"}, "is_admin": {"type": "boolean"}, "created_at": {"type": "string"}, "updated_at": {"type": "string"}}},
        "types.UserListResponse": {"type": "object", "properties": {"users": {"type": "array", "items": {"$ref": "#/definitions/types.UserResponse"}}, "total": {"type": "integer"}, "limit": {"type": "integer"}, "offset": {"type": "integer"}}},
        "types.UploadResponse": {"type": "object", "properties": {"file_id": {"type": "string"}, "filename": {"type": "string"}, "file_type": {"type": "string"},
            "file_size": {"type": "integer"}, "status": {"type": "string"}, "progress": {"type": "integer"}, "message": {"type": "string"}}},
        "types.ProgressResponse": {"type": "object", "properties": {"file_id": {"type": "string"}, "status": {"type": "string"}, "progress": {"type": "integer"}, "processing_time": {"type": "number"}, "error_message": {"type": "string"}}},
        "types.NotReadyResponse": {"type": "object", "properties": {"error": {"type": "string"}, "file_id": {"type": "string"}, "status": {"type": "string"}, "progress": {"type": "integer"}, "processing_time": {"type": "number"}, "error_message": {"type": "string"}}},
        "types.ContentResponse": {"type": "object", "properties": {"file_id": {"type": "string"}, "filename": {"type": "string"}, "file_type": {"type": "string"}, "status": {"type": "string"},
            "content": {"type": "object"}, "file_metadata": {"type": "object"}, "processing_time": {"type": "number"}, "processed_at": {"type": "string"}}},
        "types.FileItem": {"type": "object", "properties": {"id": {"type": "string"}, "filename": {"type": "string"}, "original_filename": {"type": "string"}, "file_type": {"type": "string"},
            "file_size": {"type": "integer"}, "status": {"type": "string"}, "progress": {"type": "integer"}, "error_message": {"type": "string"}, "file_metadata": {"type": "object"},
            "processing_time": {"type": "number"}, "created_at": {"type": "string"}, "updated_at": {"type": "string"}, "processed_at": {"type": "string"}}},
        "types.FileListResponse": {"type": "object", "properties": {"files": {"type": "array", "items": {"$ref": "#/definitions/types.FileItem"}}, "total": {"type": "integer"}, "limit": {"type": "integer"}, "offset": {"type": "integer"}}},
        "types.StatsResponse": {"type": "object", "properties": {"total_files": {"type": "integer"}, "total_size": {"type": "integer"},
            "status_counts": {"type": "object", "additionalProperties": {"type": "integer"}}, "file_types": {"type": "object", "additionalProperties": {"type": "integer"}},
            "total_processing_time": {"type": "number"}, "average_processing_time": {"type": "number"}}},
        "types.DeleteResponse": {"type": "object", "properties": {"success": {"type": "boolean"}, "message": {"type": "string"}}}
    }
}`

// SwaggerInfo 文档元信息，Host 在注册路由时按配置改写.
var SwaggerInfo = &swag.Spec{
	Version:          "2.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "File Parser API",
	Description:      "上传 CSV、Excel、PDF、JSON 与文本文件，异步解析并通过 WebSocket 推送进度.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
