package suggest

import "github.com/streamwatch/streamwatch-backend/internal/models"

// template is the static content behind one fix type. Title and description
// are completed with the signature's endpoint pattern at generation time.
type template struct {
	Title         string
	Description   string
	PatchTemplate string
	Steps         []string
	Risk          models.RiskLevel
}

var templates = map[models.FixType]template{
	models.FixTypeIndex: {
		Title:         "Add a covering index for %s",
		Description:   "Queries behind %s scan without an index. Adding a covering index for the hot predicate removes the scan.",
		PatchTemplate: "CREATE INDEX CONCURRENTLY idx_{table}_{column} ON {table} ({column});",
		Steps: []string{
			"Identify the slow query with EXPLAIN ANALYZE",
			"Create the index concurrently to avoid write locks",
			"Verify the planner picks the new index",
		},
		Risk: models.RiskLow,
	},
	models.FixTypeSerializer: {
		Title:         "Slim the serializer for %s",
		Description:   "The response serializer for %s emits unused fields. Restricting the field set cuts payload size and CPU.",
		PatchTemplate: "serializer.Fields = []string{ /* only fields the client reads */ }",
		Steps: []string{
			"Capture a sample response and list fields the client actually reads",
			"Drop or lazy-load the rest",
		},
		Risk: models.RiskLow,
	},
	models.FixTypeRateLimit: {
		Title:         "Rate-limit %s",
		Description:   "Burst traffic on %s degrades the shared backend. A token-bucket limit shields it.",
		PatchTemplate: "limiter := rate.NewLimiter(rate.Limit({rps}), {burst})",
		Steps: []string{
			"Pick a per-client rate from the p95 legitimate usage",
			"Return 429 with a Retry-After header above the limit",
		},
		Risk: models.RiskMedium,
	},
	models.FixTypeConnectionPool: {
		Title:         "Tune the connection pool behind %s",
		Description:   "Connection churn on %s points at an undersized or leaking pool.",
		PatchTemplate: "db.SetMaxOpenConns({n}); db.SetMaxIdleConns({n}/4); db.SetConnMaxLifetime(5 * time.Minute)",
		Steps: []string{
			"Graph pool checkouts vs. waits",
			"Raise max connections or fix the leak, not both at once",
		},
		Risk: models.RiskMedium,
	},
	models.FixTypeCaching: {
		Title:         "Cache hot reads on %s",
		Description:   "%s serves repeated identical reads. A short-TTL cache absorbs them.",
		PatchTemplate: "cache.Set(key, value, 30*time.Second)",
		Steps: []string{
			"Measure the read-repeat ratio",
			"Cache with a TTL below the staleness budget",
			"Invalidate on write",
		},
		Risk: models.RiskLow,
	},
	models.FixTypeRetryPolicy: {
		Title:         "Add retry with backoff on %s",
		Description:   "Transient failures on %s surface to clients directly. Bounded retries with jittered backoff mask them.",
		PatchTemplate: "backoff: initial=100ms, multiplier=2, max_attempts=3, jitter=full",
		Steps: []string{
			"Classify which errors are retryable",
			"Bound attempts and total deadline",
			"Make the handler idempotent first",
		},
		Risk: models.RiskLow,
	},
	models.FixTypeSchemaUpdate: {
		Title:         "Version the payload schema for %s",
		Description:   "Clients on %s send payloads the current schema rejects. An explicit schema version negotiates the change.",
		PatchTemplate: "payload.schema_version >= {min_supported}",
		Steps: []string{
			"Add a schema_version field to the payload envelope",
			"Accept the previous version during the migration window",
		},
		Risk: models.RiskMedium,
	},
	models.FixTypeConfiguration: {
		Title:         "Adjust service configuration for %s",
		Description:   "The anomaly on %s tracks a tunable limit, not a code defect.",
		PatchTemplate: "{setting}: {value}",
		Steps: []string{
			"Locate the limit in service configuration",
			"Change it in one environment and observe before rolling out",
		},
		Risk: models.RiskLow,
	},
	models.FixTypeCodeFix: {
		Title:         "Fix the handler behind %s",
		Description:   "The exception class on %s indicates a code path defect rather than an environmental issue.",
		PatchTemplate: "",
		Steps: []string{
			"Reproduce with the captured payload",
			"Add a regression test before the fix",
		},
		Risk: models.RiskHigh,
	},
	models.FixTypeInfrastructure: {
		Title:         "Scale or repair infrastructure behind %s",
		Description:   "Saturation on %s is capacity-shaped across endpoints, not specific to one handler.",
		PatchTemplate: "",
		Steps: []string{
			"Check host-level saturation (CPU, memory, fd, network)",
			"Scale horizontally or drain the bad instance",
		},
		Risk: models.RiskHigh,
	},
}

// templateFor resolves a template by fix type, defaulting to the index
// template for unmapped types.
func templateFor(ft models.FixType) (models.FixType, template) {
	if t, ok := templates[ft]; ok {
		return ft, t
	}
	return models.FixTypeIndex, templates[models.FixTypeIndex]
}
