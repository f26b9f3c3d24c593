/*
Package httpserver exposes the reconciler over HTTP for operators and CI jobs.

# API

  - POST /api/v1/plan: runs a reconciliation and returns the proposed actions
  - GET /api/v1/report?mode=diff|full&format=json|table: compares live state
    with the topology without proposing actions
  - GET /api/v1/plans/{id}, GET /api/v1/reports/{id}: fetch an archived plan
    or report by content id
  - GET /livez, /readyz, /drain, /undrain: health and drain control

Only one reconciliation runs at a time. Concurrent requests get
429 Too Many Requests. Runs that fail because an endpoint cannot be reached
answer 502 Bad Gateway.

When a storage backend is configured every plan and report is archived and
its content id returned in the X-Content-Id header.

Prometheus metrics are served on a separate listener when MetricsAddr is set.
*/
package httpserver
