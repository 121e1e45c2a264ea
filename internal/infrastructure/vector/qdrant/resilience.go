package qdrant

import (
	"net/http"

	"github.com/kirillkom/complaint-analyst/internal/infrastructure/resilience"
)

// A 500 from Qdrant usually means a malformed point or filter, so it is not retried.
var qdrantRules = resilience.Rules{
	RetryStatus:  []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
	FailStatus:   []int{http.StatusInternalServerError},
	RetryNetwork: true,
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	return qdrantRules.Classify(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.Temporary(operation, err, classifyQdrantError)
}
