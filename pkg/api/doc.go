/*
Package api exposes the lifecycle controller over a thin HTTP surface.

Routes:

	GET    /health                           liveness
	GET    /ready                            readiness
	GET    /metrics                          Prometheus metrics
	GET    /v1/events?cluster=&limit=        recent lifecycle events
	GET    /v1/clusters                      list managed clusters
	POST   /v1/clusters                      create {name, config, ...}
	GET    /v1/clusters/{name}               cluster status
	PUT    /v1/clusters/{name}               update {config, force, ...}
	DELETE /v1/clusters/{name}?keepLogs=true delete
	GET    /v1/clusters/{name}/config        deployed configuration (YAML)
	POST   /v1/clusters/{name}/fleet/start   start the compute fleet
	POST   /v1/clusters/{name}/fleet/stop    stop the compute fleet
	POST   /v1/clusters/{name}/logs/export   export logs {bucket, prefix}

Errors are a JSON envelope carrying the domain error's stable kind:

	{"error": {"kind": "ClusterUpdate", "message": "..."}}

Kinds map to statuses: ClusterNotFound is 404; ClusterUpdate and
ConcurrentUpdate are 409; validation and parse kinds are 400; everything
else is 500. A denied update additionally returns the per-change report so
clients can render every verdict.

The server depends only on the Service interface; tests drive the router
through httptest with a fake service.
*/
package api
