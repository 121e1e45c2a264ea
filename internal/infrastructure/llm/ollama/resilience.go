package ollama

import "github.com/kirillkom/complaint-analyst/internal/infrastructure/resilience"

// Non-gateway statuses (404 for an unpulled model, 400 for a bad request) fail fast
// without tripping the breaker.
var ollamaRules = resilience.Rules{
	RetryStatus:  resilience.GatewayStatuses,
	RetryNetwork: true,
}

func classifyOllamaError(err error) resilience.ErrorClassification {
	return ollamaRules.Classify(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.Temporary(operation, err, classifyOllamaError)
}
