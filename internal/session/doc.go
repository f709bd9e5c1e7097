// Package session holds per-client state: the signed-in username, one-shot
// error and success messages, and the CSRF token forms must echo.
//
// # Session values
//
// A *Session is an explicit value. The HTTP layer attaches it to the request
// context with WithSession and handlers receive it as an argument; there is
// no package-level current session. TakeError and TakeSuccess return a
// pending message and clear it, so each message is shown once.
//
// # Manager
//
// Manager loads the session named by the folio_session cookie. The cookie
// value is a signed token (see auth.JWTSigner) whose subject is the session
// ID, so a forged or altered cookie is rejected and replaced with a fresh
// anonymous session. Session contents live server-side in a Store.
//
// Middleware persists the session just before the response header is
// written and again after the handler returns if anything changed. A
// redirect therefore always reaches the client after its flash message is
// stored.
//
// A handler that changes who is signed in calls Renew. Before the header goes
// out the Manager moves the session to a new ID with a new CSRF token, drops
// the old record and sends the new cookie, so an ID obtained before sign-in
// stops working.
package session
