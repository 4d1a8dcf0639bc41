// Package docs holds the OpenAPI description served under /swagger.
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
		"/": {
			"get": {
				"description": "Usage instructions for routers",
				"produces": [
					"text/plain"
				],
				"tags": [
					"Templates"
				],
				"summary": "README",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "string"
						}
					}
				}
			}
		},
		"/get": {
			"get": {
				"description": "Shell script that collects the router state and downloads an image",
				"produces": [
					"text/plain"
				],
				"tags": [
					"Templates"
				],
				"summary": "Upgrade script",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "string"
						}
					}
				}
			}
		},
		"/list": {
			"get": {
				"description": "Shell script that prints the package list an upgrade would install",
				"produces": [
					"text/plain"
				],
				"tags": [
					"Templates"
				],
				"summary": "Package listing script",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "string"
						}
					}
				}
			}
		},
		"/api/get": {
			"get": {
				"description": "Builds a sysupgrade image for the board, keeping the packages installed on the current firmware. With mode=list only the reconciled package list is returned.",
				"produces": [
					"application/octet-stream",
					"text/plain"
				],
				"tags": [
					"Images"
				],
				"summary": "Build image or list packages",
				"parameters": [
					{
						"type": "string",
						"description": "Target, e.g. ath79/generic",
						"name": "target_name",
						"in": "query",
						"required": true
					},
					{
						"type": "string",
						"description": "Board name as reported by the device",
						"name": "board_name",
						"in": "query",
						"required": true
					},
					{
						"type": "string",
						"default": "snapshot",
						"description": "Release to build, or snapshot",
						"name": "target_version",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Release of the running firmware",
						"name": "current_release",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Revision of the running firmware",
						"name": "current_revision",
						"in": "query"
					},
					{
						"type": "array",
						"items": {
							"type": "string"
						},
						"collectionFormat": "multi",
						"description": "Installed packages, name[,alias...]",
						"name": "pkgs",
						"in": "query"
					},
					{
						"enum": [
							"build",
							"list"
						],
						"type": "string",
						"default": "build",
						"description": "build or list",
						"name": "mode",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "Image or package list",
						"schema": {
							"type": "file"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"429": {
						"description": "Too Many Requests",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					}
				}
			}
		},
		"/api/build": {
			"get": {
				"description": "Same as /api/get with mode=build",
				"produces": [
					"application/octet-stream"
				],
				"tags": [
					"Images"
				],
				"summary": "Build image",
				"parameters": [
					{
						"type": "string",
						"description": "Target, e.g. ath79/generic",
						"name": "target_name",
						"in": "query",
						"required": true
					},
					{
						"type": "string",
						"description": "Board name as reported by the device",
						"name": "board_name",
						"in": "query",
						"required": true
					},
					{
						"type": "string",
						"default": "snapshot",
						"description": "Release to build, or snapshot",
						"name": "target_version",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Release of the running firmware",
						"name": "current_release",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Revision of the running firmware",
						"name": "current_revision",
						"in": "query"
					},
					{
						"type": "array",
						"items": {
							"type": "string"
						},
						"collectionFormat": "multi",
						"description": "Installed packages, name[,alias...]",
						"name": "pkgs",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "Sysupgrade image",
						"schema": {
							"type": "file"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"429": {
						"description": "Too Many Requests",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					}
				}
			}
		},
		"/api/list": {
			"get": {
				"description": "Same as /api/get with mode=list",
				"produces": [
					"text/plain"
				],
				"tags": [
					"Images"
				],
				"summary": "List packages",
				"parameters": [
					{
						"type": "string",
						"description": "Target, e.g. ath79/generic",
						"name": "target_name",
						"in": "query",
						"required": true
					},
					{
						"type": "string",
						"description": "Board name as reported by the device",
						"name": "board_name",
						"in": "query",
						"required": true
					},
					{
						"type": "string",
						"default": "snapshot",
						"description": "Release to build, or snapshot",
						"name": "target_version",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Release of the running firmware",
						"name": "current_release",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Revision of the running firmware",
						"name": "current_revision",
						"in": "query"
					},
					{
						"type": "array",
						"items": {
							"type": "string"
						},
						"collectionFormat": "multi",
						"description": "Installed packages, name[,alias...]",
						"name": "pkgs",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "Space separated package list",
						"schema": {
							"type": "file"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"429": {
						"description": "Too Many Requests",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					}
				}
			}
		},
		"/v1/health": {
			"get": {
				"description": "Reports liveness and worker pool usage",
				"produces": [
					"application/json"
				],
				"tags": [
					"System"
				],
				"summary": "Health check",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/base.HealthResponse"
						}
					}
				}
			}
		},
		"/v1/version": {
			"get": {
				"description": "Returns version and build information",
				"produces": [
					"application/json"
				],
				"tags": [
					"System"
				],
				"summary": "Version",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/base.VersionResponse"
						}
					}
				}
			}
		},
		"/v1/operations": {
			"get": {
				"description": "Lists recent operations, newest first",
				"produces": [
					"application/json"
				],
				"tags": [
					"Operations"
				],
				"summary": "List operations",
				"parameters": [
					{
						"type": "integer",
						"default": 50,
						"description": "Maximum number of operations",
						"name": "limit",
						"in": "query"
					},
					{
						"enum": [
							"queued",
							"running",
							"completed",
							"failed",
							"canceled"
						],
						"type": "string",
						"description": "Filter by status",
						"name": "status",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/operations.OperationListResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					}
				}
			}
		},
		"/v1/operations/{id}": {
			"get": {
				"description": "Returns the registry entry of an operation",
				"produces": [
					"application/json"
				],
				"tags": [
					"Operations"
				],
				"summary": "Get operation",
				"parameters": [
					{
						"type": "string",
						"description": "Operation ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/operations.OperationResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					}
				}
			},
			"delete": {
				"description": "Cancels a queued or running operation. Its workdir is released.",
				"produces": [
					"application/json"
				],
				"tags": [
					"Operations"
				],
				"summary": "Cancel operation",
				"parameters": [
					{
						"type": "string",
						"description": "Operation ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"202": {
						"description": "Accepted",
						"schema": {
							"$ref": "#/definitions/operations.CancelResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					}
				}
			}
		},
		"/v1/cache": {
			"get": {
				"description": "Reports whether the cache backend is reachable",
				"produces": [
					"application/json"
				],
				"tags": [
					"Cache"
				],
				"summary": "Cache status",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/cache.StatusResponse"
						}
					}
				}
			}
		},
		"/v1/cache/objects": {
			"get": {
				"description": "Lists cached objects under an optional key prefix",
				"produces": [
					"application/json"
				],
				"tags": [
					"Cache"
				],
				"summary": "List cached objects",
				"parameters": [
					{
						"type": "string",
						"description": "Key prefix, e.g. imagebuilder/snapshots",
						"name": "prefix",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/cache.ObjectListResponse"
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					}
				}
			}
		},
		"/v1/cache/objects/{key}": {
			"delete": {
				"description": "Deletes a cached object",
				"tags": [
					"Cache"
				],
				"summary": "Evict cached object",
				"parameters": [
					{
						"type": "string",
						"description": "Object key",
						"name": "key",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"204": {
						"description": "No Content"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"$ref": "#/definitions/errors.Response"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"errors.Response": {
			"type": "object",
			"properties": {
				"error": {
					"type": "string",
					"example": "request.unknown_board"
				},
				"message": {
					"type": "string"
				},
				"details": {
					"type": "object",
					"additionalProperties": true
				}
			}
		},
		"base.HealthResponse": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string",
					"example": "healthy"
				},
				"timestamp": {
					"type": "string",
					"example": "2024-01-15T10:30:00Z"
				},
				"workers": {
					"type": "integer",
					"example": 2
				},
				"busy": {
					"type": "integer",
					"example": 1
				}
			}
		},
		"base.VersionResponse": {
			"type": "object",
			"properties": {
				"version": {
					"type": "string",
					"example": "upenwrtd v1.0.0-4f9f297"
				},
				"release_version": {
					"type": "string",
					"example": "1.0.0"
				},
				"build_date": {
					"type": "string",
					"example": "2024-01-15T10:30:00Z"
				},
				"git_commit": {
					"type": "string",
					"example": "4f9f297"
				},
				"go_version": {
					"type": "string",
					"example": "go1.24"
				}
			}
		},
		"operations.OperationResponse": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"mode": {
					"type": "string",
					"example": "build"
				},
				"target_name": {
					"type": "string",
					"example": "ath79/generic"
				},
				"board_name": {
					"type": "string",
					"example": "tplink,archer-c7-v2"
				},
				"target_version": {
					"type": "string",
					"example": "snapshot"
				},
				"current_release": {
					"type": "string",
					"example": "22.03.3"
				},
				"current_revision": {
					"type": "string",
					"example": "r20028-43d71ad93e"
				},
				"packages": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"install_packages": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"status": {
					"type": "string",
					"example": "completed"
				},
				"state": {
					"type": "string",
					"example": "released"
				},
				"error_message": {
					"type": "string"
				},
				"error_state": {
					"type": "string"
				},
				"image_name": {
					"type": "string"
				},
				"image_size": {
					"type": "integer"
				},
				"created_at": {
					"type": "string"
				},
				"started_at": {
					"type": "string"
				},
				"completed_at": {
					"type": "string"
				},
				"active": {
					"type": "boolean",
					"example": true
				}
			}
		},
		"operations.OperationListResponse": {
			"type": "object",
			"properties": {
				"count": {
					"type": "integer",
					"example": 1
				},
				"operations": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/operations.OperationResponse"
					}
				}
			}
		},
		"operations.CancelResponse": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"message": {
					"type": "string",
					"example": "Cancellation requested"
				}
			}
		},
		"cache.StatusResponse": {
			"type": "object",
			"properties": {
				"available": {
					"type": "boolean",
					"example": true
				},
				"type": {
					"type": "string",
					"example": "local"
				},
				"location": {
					"type": "string",
					"example": "/var/lib/upenwrtd/cache"
				},
				"message": {
					"type": "string",
					"example": "Cache is operational"
				}
			}
		},
		"storage.ObjectInfo": {
			"type": "object",
			"properties": {
				"key": {
					"type": "string"
				},
				"size": {
					"type": "integer"
				},
				"content_type": {
					"type": "string"
				},
				"etag": {
					"type": "string"
				},
				"last_modified": {
					"type": "string"
				}
			}
		},
		"cache.ObjectListResponse": {
			"type": "object",
			"properties": {
				"count": {
					"type": "integer",
					"example": 2
				},
				"total_size": {
					"type": "integer",
					"example": 104857600
				},
				"objects": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/storage.ObjectInfo"
					}
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "upenwrtd API",
	Description:      "Builds OpenWrt sysupgrade images that keep the packages installed on a router.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
