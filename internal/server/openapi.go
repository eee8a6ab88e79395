package server

import (
	"github.com/iwvelando/loan-support/internal/calculator"
	"github.com/iwvelando/loan-support/pkg/constants"
)

type object = map[string]interface{}

func jsonBody(schema object) object {
	return object{
		"content": object{
			"application/json": object{"schema": schema},
		},
	}
}

func okResponse(description string) object {
	return object{"200": object{"description": description}}
}

// openAPIDocument describes the versioned routes as an OpenAPI 3.0.0 document.
func openAPIDocument(version string) object {
	return object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Loan Support API",
			"version":     version,
			"description": "API for document ingestion, question answering and loan eligibility calculations",
		},
		"servers": []object{
			{"url": constants.APIPrefix, "description": "API v1"},
		},
		"paths": object{
			"/health": object{
				"get": object{"summary": "Health check", "responses": okResponse("Service is healthy")},
			},
			"/version": object{
				"get": object{"summary": "Build version", "responses": okResponse("Server version")},
			},
			"/ingest": object{
				"post": object{
					"summary": "Ingest PDF documents",
					"requestBody": jsonBody(object{
						"type": "object",
						"properties": object{
							"path": object{"type": "string", "default": constants.DefaultDocumentsPath},
						},
					}),
					"responses": okResponse("Ingestion counts"),
				},
			},
			"/chat/ask": object{
				"post": object{
					"summary": "Ask a question about the ingested documents",
					"requestBody": jsonBody(object{
						"type":     "object",
						"required": []string{"query"},
						"properties": object{
							"query": object{"type": "string"},
							"top_k": object{"type": "integer", "default": constants.DefaultTopK},
						},
					}),
					"responses": okResponse("Generated answer"),
				},
			},
			"/eligibility/calculate": object{
				"post": object{
					"summary": "Calculate loan eligibility",
					"requestBody": jsonBody(object{
						"type": "object",
						"required": []string{
							calculator.FieldMonthlyIncome,
							calculator.FieldMonthlyObligations,
							calculator.FieldROI,
							calculator.FieldTenureMonths,
						},
						"properties": object{
							calculator.FieldMonthlyIncome:      object{"type": "number"},
							calculator.FieldMonthlyObligations: object{"type": "number"},
							calculator.FieldROI:                object{"type": "number", "maximum": constants.MaxAnnualRatePercent},
							calculator.FieldTenureMonths: object{
								"type":    "integer",
								"minimum": constants.MinTenureMonths,
								"maximum": constants.MaxTenureMonths,
							},
							calculator.FieldLoanAmount: object{"type": "number"},
						},
					}),
					"responses": okResponse("EMI, FOIR and eligible loan amount"),
				},
			},
			"/eligibility/history": object{
				"get": object{
					"summary": "Recent eligibility calculations",
					"parameters": []object{
						{
							"name":   "limit",
							"in":     "query",
							"schema": object{"type": "integer", "default": constants.DefaultHistoryLimit, "maximum": constants.MaxHistoryLimit},
						},
					},
					"responses": okResponse("Calculations, newest first"),
				},
			},
		},
	}
}
