package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Scheduling API",
        "description": "Weekly timetables, academic periods, calendar events and enrollments with conflict-free placement.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Schedules",
            "description": "Weekly class slots"
        },
        {
            "name": "AcademicPeriods",
            "description": "Semesters and terms"
        },
        {
            "name": "AcademicEvents",
            "description": "School calendar"
        },
        {
            "name": "Enrollments",
            "description": "Student course registrations"
        },
        {
            "name": "Authentication"
        },
        {
            "name": "Audit"
        },
        {
            "name": "Observability"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": [
                    "Observability"
                ],
                "summary": "Liveness probe",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "tags": [
                    "Observability"
                ],
                "summary": "Readiness probe",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "A dependency is unreachable"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": [
                    "Observability"
                ],
                "summary": "Prometheus metrics",
                "produces": [
                    "text/plain"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/metrics/summary": {
            "get": {
                "tags": [
                    "Observability"
                ],
                "summary": "Process counters digest",
                "parameters": [],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/audit-logs": {
            "get": {
                "tags": [
                    "Audit"
                ],
                "summary": "List audit entries",
                "parameters": [
                    {
                        "name": "resource",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "action",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Authenticate user",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/LoginRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Invalid credentials",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "429": {
                        "description": "Too many attempts",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Rotate refresh token",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RefreshTokenRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Invalid refresh token",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/auth/logout": {
            "post": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Revoke refresh token",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RefreshTokenRequest"
                        }
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/auth/change-password": {
            "post": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Change password",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ChangePasswordRequest"
                        }
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/auth/me": {
            "get": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Current user",
                "parameters": [],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "List schedules",
                "parameters": [
                    {
                        "name": "course_id",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "subject_id",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "teacher_id",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "day_of_week",
                        "in": "query",
                        "type": "integer",
                        "description": "0 (Sunday) to 6 (Saturday)"
                    },
                    {
                        "name": "include_inactive",
                        "in": "query",
                        "type": "boolean"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer",
                        "description": "Page size, max 100"
                    },
                    {
                        "name": "sort",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "order",
                        "in": "query",
                        "type": "string",
                        "description": "asc or desc"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Create schedule",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateScheduleRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "SCHEDULE_CONFLICT, OUTSIDE_PERIOD, INVALID_INTERVAL or INVALID_REFERENCE; conflicts carry meta.conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Rejects slots overlapping the teacher's or course's slots on the same weekday."
            }
        },
        "/api/v1/schedules/{id}": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Get schedule",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Update schedule",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateScheduleRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "SCHEDULE_CONFLICT, OUTSIDE_PERIOD, INVALID_INTERVAL or INVALID_REFERENCE; conflicts carry meta.conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Deactivate schedule",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/teacher/{id}": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Weekly timetable of a teacher",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Teacher ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/course/{id}": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Weekly timetable of a course",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Course ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/stats": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Timetable statistics",
                "parameters": [],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/schedules/export": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Export a weekly timetable",
                "parameters": [
                    {
                        "name": "owner",
                        "in": "query",
                        "type": "string",
                        "required": true,
                        "description": "teacher or course"
                    },
                    {
                        "name": "id",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "description": "csv (default) or pdf"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Timetable document",
                        "schema": {
                            "type": "file"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "text/csv",
                    "application/pdf"
                ]
            }
        },
        "/api/v1/academic-periods": {
            "get": {
                "tags": [
                    "AcademicPeriods"
                ],
                "summary": "List academic periods",
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "start_from",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "end_until",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "include_inactive",
                        "in": "query",
                        "type": "boolean"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer",
                        "description": "Page size, max 100"
                    },
                    {
                        "name": "sort",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "order",
                        "in": "query",
                        "type": "string",
                        "description": "asc or desc"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "AcademicPeriods"
                ],
                "summary": "Create academic period",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateAcademicPeriodRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "SCHEDULE_CONFLICT, OUTSIDE_PERIOD, INVALID_INTERVAL or INVALID_REFERENCE; conflicts carry meta.conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Duplicate code",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-periods/{id}": {
            "get": {
                "tags": [
                    "AcademicPeriods"
                ],
                "summary": "Get academic period",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "AcademicPeriods"
                ],
                "summary": "Update academic period",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateAcademicPeriodRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "SCHEDULE_CONFLICT, OUTSIDE_PERIOD, INVALID_INTERVAL or INVALID_REFERENCE; conflicts carry meta.conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "AcademicPeriods"
                ],
                "summary": "Deactivate academic period",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "409": {
                        "description": "Period has live enrollments",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-periods/{id}/events": {
            "get": {
                "tags": [
                    "AcademicPeriods"
                ],
                "summary": "Events of a period",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-periods/current": {
            "get": {
                "tags": [
                    "AcademicPeriods"
                ],
                "summary": "Period in progress today",
                "parameters": [],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "None in progress",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-periods/upcoming": {
            "get": {
                "tags": [
                    "AcademicPeriods"
                ],
                "summary": "Next periods",
                "parameters": [],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-periods/active": {
            "get": {
                "tags": [
                    "AcademicPeriods"
                ],
                "summary": "Active periods",
                "parameters": [],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-periods/stats": {
            "get": {
                "tags": [
                    "AcademicPeriods"
                ],
                "summary": "Period statistics",
                "parameters": [],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-events": {
            "get": {
                "tags": [
                    "AcademicEvents"
                ],
                "summary": "List academic events",
                "parameters": [
                    {
                        "name": "period_id",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "type",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "start_from",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "end_until",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "all_day",
                        "in": "query",
                        "type": "boolean"
                    },
                    {
                        "name": "include_inactive",
                        "in": "query",
                        "type": "boolean"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer",
                        "description": "Page size, max 100"
                    },
                    {
                        "name": "sort",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "order",
                        "in": "query",
                        "type": "string",
                        "description": "asc or desc"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "AcademicEvents"
                ],
                "summary": "Create academic event",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateAcademicEventRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "SCHEDULE_CONFLICT, OUTSIDE_PERIOD, INVALID_INTERVAL or INVALID_REFERENCE; conflicts carry meta.conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-events/{id}": {
            "get": {
                "tags": [
                    "AcademicEvents"
                ],
                "summary": "Get academic event",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "AcademicEvents"
                ],
                "summary": "Update academic event",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateAcademicEventRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "SCHEDULE_CONFLICT, OUTSIDE_PERIOD, INVALID_INTERVAL or INVALID_REFERENCE; conflicts carry meta.conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "AcademicEvents"
                ],
                "summary": "Deactivate academic event",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-events/calendar": {
            "get": {
                "tags": [
                    "AcademicEvents"
                ],
                "summary": "Events intersecting a window",
                "parameters": [
                    {
                        "name": "from",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "period_id",
                        "in": "query",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-events/upcoming": {
            "get": {
                "tags": [
                    "AcademicEvents"
                ],
                "summary": "Events starting soon",
                "parameters": [
                    {
                        "name": "days",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "period_id",
                        "in": "query",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-events/today": {
            "get": {
                "tags": [
                    "AcademicEvents"
                ],
                "summary": "Events in progress today",
                "parameters": [
                    {
                        "name": "period_id",
                        "in": "query",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-events/type/{type}": {
            "get": {
                "tags": [
                    "AcademicEvents"
                ],
                "summary": "Events of one type",
                "parameters": [
                    {
                        "name": "type",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "HOLIDAY, EXAM, MEETING, ACTIVITY, DEADLINE or OTHER"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/academic-events/stats": {
            "get": {
                "tags": [
                    "AcademicEvents"
                ],
                "summary": "Event statistics",
                "parameters": [],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/enrollments": {
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "List enrollments",
                "parameters": [
                    {
                        "name": "student_id",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "course_id",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "period_id",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "include_inactive",
                        "in": "query",
                        "type": "boolean"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer",
                        "description": "Page size, max 100"
                    },
                    {
                        "name": "sort",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "order",
                        "in": "query",
                        "type": "string",
                        "description": "asc or desc"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Enroll student",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateEnrollmentRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "SCHEDULE_CONFLICT, OUTSIDE_PERIOD, INVALID_INTERVAL or INVALID_REFERENCE; conflicts carry meta.conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Duplicate enrollment or course full",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/enrollments/{id}": {
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Get enrollment",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Update enrollment",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateEnrollmentRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "SCHEDULE_CONFLICT, OUTSIDE_PERIOD, INVALID_INTERVAL or INVALID_REFERENCE; conflicts carry meta.conflict",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Cancel enrollment",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Resource ID"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "409": {
                        "description": "Already cancelled",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/enrollments/stats": {
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Enrollment statistics",
                "parameters": [],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                }
            },
            "required": [
                "email",
                "password"
            ]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {
                    "type": "string"
                }
            },
            "required": [
                "refresh_token"
            ]
        },
        "ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "old_password": {
                    "type": "string"
                },
                "new_password": {
                    "type": "string"
                }
            },
            "required": [
                "old_password",
                "new_password"
            ]
        },
        "CreateScheduleRequest": {
            "type": "object",
            "properties": {
                "course_id": {
                    "type": "string"
                },
                "subject_id": {
                    "type": "string"
                },
                "teacher_id": {
                    "type": "string"
                },
                "day_of_week": {
                    "type": "integer",
                    "minimum": 0,
                    "maximum": 6
                },
                "start_time": {
                    "type": "string",
                    "example": "08:00"
                },
                "end_time": {
                    "type": "string",
                    "example": "09:30"
                },
                "room": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            },
            "required": [
                "course_id",
                "subject_id",
                "teacher_id",
                "day_of_week",
                "start_time",
                "end_time"
            ]
        },
        "UpdateScheduleRequest": {
            "type": "object",
            "properties": {
                "course_id": {
                    "type": "string"
                },
                "subject_id": {
                    "type": "string"
                },
                "teacher_id": {
                    "type": "string"
                },
                "day_of_week": {
                    "type": "integer"
                },
                "start_time": {
                    "type": "string"
                },
                "end_time": {
                    "type": "string"
                },
                "room": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            }
        },
        "CreateAcademicPeriodRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "code": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "start_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "end_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "status": {
                    "type": "string"
                }
            },
            "required": [
                "name",
                "code",
                "start_date",
                "end_date"
            ]
        },
        "UpdateAcademicPeriodRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "code": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "start_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "end_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "status": {
                    "type": "string"
                }
            }
        },
        "CreateAcademicEventRequest": {
            "type": "object",
            "properties": {
                "academic_period_id": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                },
                "start_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "end_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "is_all_day": {
                    "type": "boolean"
                },
                "location": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            },
            "required": [
                "academic_period_id",
                "title",
                "type",
                "start_date",
                "end_date"
            ]
        },
        "UpdateAcademicEventRequest": {
            "type": "object",
            "properties": {
                "academic_period_id": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                },
                "start_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "end_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "is_all_day": {
                    "type": "boolean"
                },
                "location": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            }
        },
        "CreateEnrollmentRequest": {
            "type": "object",
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "course_id": {
                    "type": "string"
                },
                "academic_period_id": {
                    "type": "string"
                },
                "start_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "end_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "status": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            },
            "required": [
                "student_id",
                "course_id",
                "academic_period_id"
            ]
        },
        "UpdateEnrollmentRequest": {
            "type": "object",
            "properties": {
                "start_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "end_date": {
                    "type": "string",
                    "format": "date-time"
                },
                "status": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            }
        },
        "ConflictDetails": {
            "type": "object",
            "properties": {
                "scope": {
                    "type": "string"
                },
                "resource_key": {
                    "type": "string"
                },
                "conflicting_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object",
                    "properties": {
                        "conflict": {
                            "$ref": "#/definitions/ConflictDetails"
                        }
                    }
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
