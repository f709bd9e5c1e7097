// Package metrics exposes folio's Prometheus metrics.
//
// Collector registers these series on a caller-supplied registry:
//
//	folio_http_requests_total{method,route,status_code}
//	folio_http_request_duration_seconds{route}
//	folio_document_ops_total{op,outcome}
//	folio_login_attempts_total{outcome}
//	folio_signups_total{outcome}
//	folio_rate_limited_total{route}
//
// Route labels use chi route patterns ("/{file}/edit"), never raw paths, so
// label cardinality stays bounded.
package metrics
