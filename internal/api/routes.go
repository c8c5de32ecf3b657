package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/v1/about"

	ConfirmInstanceRoute = "/v1/instance/confirm"
	RefreshInstanceRoute = "/v1/instance/refresh"

	AdminParent     = "/v1/admin/"
	ListAuditsRoute = AdminParent + "audits"

	TaskParent       = AdminParent + "tasks/"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "{name}/trigger"
	LogsForTaskRoute = TaskParent + "{name}/logs"
)
