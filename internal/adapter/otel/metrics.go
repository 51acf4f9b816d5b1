package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "crmauth"

// Metrics holds the auth-plane metric instruments.
type Metrics struct {
	LoginsSucceeded   metric.Int64Counter
	LoginsFailed      metric.Int64Counter
	TokensIssued      metric.Int64Counter
	TokensRefreshed   metric.Int64Counter
	PermissionChecks  metric.Int64Counter
	PermissionDenials metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.LoginsSucceeded, err = meter.Int64Counter("crmauth.logins.succeeded",
		metric.WithDescription("Number of successful logins"))
	if err != nil {
		return nil, err
	}

	m.LoginsFailed, err = meter.Int64Counter("crmauth.logins.failed",
		metric.WithDescription("Number of failed login attempts"))
	if err != nil {
		return nil, err
	}

	m.TokensIssued, err = meter.Int64Counter("crmauth.tokens.issued",
		metric.WithDescription("Number of token pairs issued"))
	if err != nil {
		return nil, err
	}

	m.TokensRefreshed, err = meter.Int64Counter("crmauth.tokens.refreshed",
		metric.WithDescription("Number of refresh token rotations"))
	if err != nil {
		return nil, err
	}

	m.PermissionChecks, err = meter.Int64Counter("crmauth.permission.checks",
		metric.WithDescription("Number of permission evaluations"))
	if err != nil {
		return nil, err
	}

	m.PermissionDenials, err = meter.Int64Counter("crmauth.permission.denials",
		metric.WithDescription("Number of denied permission evaluations"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
