package nats

import (
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/complaint-analyst/internal/infrastructure/resilience"
)

var natsRules = resilience.Rules{
	Transient: []error{nats.ErrNoServers, nats.ErrTimeout, nats.ErrConnectionClosed, nats.ErrDisconnected},
}

func classifyNATSError(err error) resilience.ErrorClassification {
	return natsRules.Classify(err)
}

func wrapTemporaryIfNeeded(err error) error {
	return resilience.Temporary("nats publish", err, classifyNATSError)
}
