package constants

// Static route constants
const (
	APIRoute     = "/api"
	APIV1Route   = "/v1"
	BillingRoute = "/billing"
	AdminRoute   = "/admin"
	MetricsRoute = "/metrics"
)
