package api

import "net/http"

// handleOpenAPI handles GET /api/v1/openapi.json.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc())
}

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the ops API.
func buildOpenAPIDoc() map[string]any {
	jsonResponse := func(desc string) map[string]any {
		return map[string]any{"description": desc}
	}
	secured := []any{map[string]any{"ApiKeyAuth": []string{}}}

	paths := map[string]any{
		"/healthz": map[string]any{
			"get": map[string]any{
				"operationId": "healthz",
				"summary":     "Service liveness",
				"responses": map[string]any{
					"200": jsonResponse("Service is up"),
				},
			},
		},
		"/api/v1/events": map[string]any{
			"get": map[string]any{
				"operationId": "listEvents",
				"summary":     "List audited webhook events",
				"parameters": []any{
					queryParam("source", "Filter by webhook source"),
					queryParam("status", "Filter by lifecycle status"),
					queryParam("limit", "Maximum records returned"),
				},
				"responses": map[string]any{
					"200": jsonResponse("Event list"),
					"401": jsonResponse("Missing or invalid API key"),
				},
				"security": secured,
			},
		},
		"/api/v1/events/{eventID}": map[string]any{
			"get": map[string]any{
				"operationId": "getEvent",
				"summary":     "Fetch one audited event",
				"parameters":  []any{pathParam("eventID")},
				"responses": map[string]any{
					"200": jsonResponse("Event record"),
					"404": jsonResponse("Unknown event"),
				},
				"security": secured,
			},
		},
		"/api/v1/token/status": map[string]any{
			"get": map[string]any{
				"operationId": "tokenStatus",
				"summary":     "Token cache state per provider (no token values)",
				"responses": map[string]any{
					"200": jsonResponse("Cache status"),
				},
				"security": secured,
			},
		},
		"/api/v1/token/refresh/{provider}": map[string]any{
			"post": map[string]any{
				"operationId": "tokenRefresh",
				"summary":     "Force-refresh a provider's cached token",
				"parameters":  []any{pathParam("provider")},
				"responses": map[string]any{
					"200": jsonResponse("Token refreshed"),
					"404": jsonResponse("Unknown provider"),
					"502": jsonResponse("Provider refused the refresh"),
				},
				"security": secured,
			},
		},
		"/api/v1/stream": map[string]any{
			"get": map[string]any{
				"operationId": "stream",
				"summary":     "Server-sent events feed of service activity",
				"responses": map[string]any{
					"200": jsonResponse("text/event-stream"),
				},
				"security": secured,
			},
		},
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Trestle Ops API",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"ApiKeyAuth": map[string]any{
					"type": "apiKey",
					"in":   "header",
					"name": "X-API-Key",
				},
			},
		},
	}
}

func queryParam(name, desc string) map[string]any {
	return map[string]any{
		"name":        name,
		"in":          "query",
		"required":    false,
		"description": desc,
		"schema":      map[string]any{"type": "string"},
	}
}

func pathParam(name string) map[string]any {
	return map[string]any{
		"name":     name,
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "string"},
	}
}
