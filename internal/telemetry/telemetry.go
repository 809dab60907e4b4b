// Package telemetry configures OpenTelemetry context propagation for
// outbound event messages.
package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var once sync.Once

// InstallPropagator registers the W3C trace-context and baggage propagators
// globally so published events carry the caller's trace and baggage headers.
// Repeated calls are no-ops.
func InstallPropagator() {
	once.Do(func() {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})
}
