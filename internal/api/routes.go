package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/icanhazgatepass"

	FetchTokenRoute = "/v1/token/fetch"

	AdminParent           = "/v1/admin/"
	ListProvidersRoute    = AdminParent + "providers"
	RegisterProviderRoute = AdminParent + "providers"
	DeleteProviderRoute   = AdminParent + "providers/{name}"
	MirrorSecretRoute     = AdminParent + "secrets/mirror"
	DeleteSecretRoute     = AdminParent + "secrets/{namespace}/{name}"
	ListAuditsRoute       = AdminParent + "audit/entries"
	ListCachedTokensRoute = AdminParent + "audit/tokens"
)

// ExecutionRoleHeader carries the caller's execution role; the broker
// derives the workload identity from it together with the agent header.
const ExecutionRoleHeader = "X-Execution-Role"

// AgentHeader optionally names the agent within the execution role.
const AgentHeader = "X-Agent"
