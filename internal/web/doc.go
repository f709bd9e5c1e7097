// Package web is the HTTP face of folio.
//
// # Routes
//
//	GET  /                 document list
//	GET  /new              new-document form
//	POST /new              create a document
//	GET  /{file}           view (markdown rendered, plain text verbatim)
//	GET  /{file}/edit      edit form
//	POST /{file}/edit      save changes
//	POST /{file}/delete    delete
//	GET  /user/login       sign-in form
//	POST /user/login       sign in
//	POST /user/logout      sign out
//	GET  /user/new         sign-up form
//	POST /user/new         create an account
//	GET  /health           liveness (when configured)
//	GET  /health/ready     readiness (when configured)
//	GET  /metrics          Prometheus metrics (when enabled)
//	GET  /static/*         embedded stylesheet
//
// # Responses
//
// Handlers in package cms return a Result, which Server maps to HTTP:
// StatusOK renders a page (200), StatusValidationFailure re-renders the
// form (422), StatusRedirect sends 302 with Location, and a returned error
// becomes 500. Pending flash messages are consumed when a page is rendered.
//
// # Security
//
// Every POST must echo the session's CSRF token in the csrf_token field or
// the X-CSRF-Token header; otherwise it gets 403. Login and signup
// submissions are rate limited per client IP and answered with 429 and a
// Retry-After header when exhausted.
package web
