package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Pending Subjects API",
        "description": "Tracks subjects students still owe from previous years through the intensification checkpoints.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Pending", "description": "Pending registration lifecycle"},
        {"name": "Pending Views", "description": "Grouped per-student and per-course views"},
        {"name": "Subject Groups", "description": "Subject offering to group resolution"}
    ],
    "paths": {
        "/pending-registrations": {
            "get": {
                "tags": ["Pending"],
                "summary": "List pending registrations",
                "parameters": [
                    {"name": "state", "in": "query", "type": "string", "enum": ["active", "inactive", "all"]},
                    {"name": "professorId", "in": "query", "type": "string"},
                    {"name": "subjectOfferingId", "in": "query", "type": "string"},
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "cycleId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string", "enum": ["student", "subject", "course", "created_at", "modified_at"]},
                    {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Pending"],
                "summary": "Register a pending subject",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePendingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Active registration already exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pending-registrations/bulk": {
            "post": {
                "tags": ["Pending"],
                "summary": "Register several pending subjects for one student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkAssignRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "One of the subjects is already pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pending-registrations/{id}": {
            "get": {
                "tags": ["Pending"],
                "summary": "Get a pending registration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Pending"],
                "summary": "Update one field of a pending registration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePendingFieldRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "INVALID_FIELD or INVALID_VALUE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Version conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Registration is inactive", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Pending"],
                "summary": "Deactivate a pending registration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Already inactive", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pending-registrations/{id}/history": {
            "get": {
                "tags": ["Pending"],
                "summary": "Audit trail of a pending registration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/pending-view": {
            "get": {
                "tags": ["Pending Views"],
                "summary": "Grouped pending view of a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "cycleId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/pending-view": {
            "get": {
                "tags": ["Pending Views"],
                "summary": "Pending view of every student in a course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "cycleId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/pending-views/invalidate": {
            "post": {
                "tags": ["Pending Views"],
                "summary": "Drop cached grouped views after subject regrouping",
                "parameters": [
                    {"name": "cycleId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Managers only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subject-offerings/{id}/group": {
            "get": {
                "tags": ["Subject Groups"],
                "summary": "Active subject group of an offering",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreatePendingRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "subjectOfferingId": {"type": "string"},
                "cycleId": {"type": "string"},
                "initialGaps": {"type": "string"}
            },
            "required": ["studentId", "subjectOfferingId", "cycleId", "initialGaps"]
        },
        "BulkAssignItem": {
            "type": "object",
            "properties": {
                "subjectOfferingId": {"type": "string"},
                "initialGaps": {"type": "string"}
            },
            "required": ["subjectOfferingId", "initialGaps"]
        },
        "BulkAssignRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "cycleId": {"type": "string"},
                "items": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/BulkAssignItem"}
                }
            },
            "required": ["studentId", "cycleId", "items"]
        },
        "UpdatePendingFieldRequest": {
            "type": "object",
            "properties": {
                "field": {"type": "string", "enum": ["march", "july", "august", "december", "february", "finalGrade", "closingGaps"]},
                "value": {"description": "AA, CCA, CSA or empty for checkpoints; 1-10 for finalGrade; text for closingGaps; null clears"},
                "version": {"type": "integer"}
            },
            "required": ["field"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
