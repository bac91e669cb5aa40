package api

import (
	"github.com/delaycast/delaycast/pkg/types"
)

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Flights []types.Flight `json:"flights"`
}

// PredictResponse is the payload for POST /predict.
type PredictResponse struct {
	Predict []int `json:"predict"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Detail string `json:"detail"`
}
