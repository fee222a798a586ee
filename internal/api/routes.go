package api

const (
	HealthCheckRoute = "/health-check"
	LivenessRoute    = "/healthz"
	ReadinessRoute   = "/readyz"
	AboutRoute       = "/about"
	MetricsRoute     = "/metrics"

	APIPrefix   = "/api/v1"
	IngestRoute = APIPrefix + "/ingest"

	AdminParent      = APIPrefix + "/admin/"
	ListAuditsRoute  = AdminParent + "audits"
	ListKeysRoute    = AdminParent + "keys"
	ListTasksRoute   = AdminParent + "tasks"
	TriggerTaskRoute = AdminParent + "tasks/{name}/trigger"
	LogsForTaskRoute = AdminParent + "tasks/{name}/logs"
)
