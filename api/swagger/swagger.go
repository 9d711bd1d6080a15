package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Scheduler Core API",
        "description": "Course scheduling optimization service: solves room/time/instructor assignment as a constraint satisfaction problem.",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "tags": ["System"],
                "responses": {
                    "200": { "description": "OK" },
                    "503": { "description": "Database unreachable" }
                }
            }
        },
        "/solve": {
            "post": {
                "summary": "Solve a scheduling problem instance",
                "tags": ["Solver"],
                "responses": {
                    "200": { "description": "Solve completed" },
                    "400": { "description": "Invalid payload" },
                    "501": { "description": "Async mode not yet implemented" }
                }
            }
        },
        "/validate": {
            "post": {
                "summary": "Validate a scheduling problem instance",
                "tags": ["Solver"],
                "responses": {
                    "200": { "description": "Validation result" },
                    "400": { "description": "Invalid payload" }
                }
            }
        },
        "/solve-from-db": {
            "post": {
                "summary": "Solve using a database-hydrated problem instance",
                "tags": ["Solver"],
                "responses": {
                    "200": { "description": "Solve completed and persisted as a draft schedule version" },
                    "400": { "description": "Invalid payload" },
                    "500": { "description": "Persistence or solver error" }
                }
            }
        },
        "/solve-from-db/{id}/commit": {
            "post": {
                "summary": "Publish a draft schedule version",
                "tags": ["Solver"],
                "responses": {
                    "200": { "description": "Schedule version published" },
                    "404": { "description": "Schedule version not found" }
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "summary": "Get a solver run",
                "tags": ["Solver"],
                "responses": {
                    "501": { "description": "Not yet implemented" }
                }
            }
        },
        "/runs/{id}/cancel": {
            "post": {
                "summary": "Cancel a solver run",
                "tags": ["Solver"],
                "responses": {
                    "501": { "description": "Not yet implemented" }
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "tags": ["System"],
                "responses": {
                    "200": { "description": "Prometheus text exposition" }
                }
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
