// Package cms implements folio's request handlers without any HTTP types.
//
// Every handler takes a context, the caller's *session.Session and plain
// inputs, and returns a *Result:
//
//   - StatusOK: render Page with Data, or write Body with ContentType
//   - StatusValidationFailure: re-render a form; Message explains why
//   - StatusRedirect: send the client to Location
//
// Expected failures (bad names, wrong passwords, missing documents, denied
// access) never come back as errors. They are recovered into a Result, with a
// one-shot message stored on the session and the cause kept in Result.Err.
// Only storage failures are returned as errors, which the transport reports
// as a server error.
//
// # Gating
//
// NewForm, Create, EditForm, Update and Delete consult the auth.Gate first.
// A denied call sets the gate's message, redirects to "/" and returns before
// any store is touched. List and View are open to everyone.
//
// # Signup order
//
// Signup rejects an empty username, then an existing username, then
// mismatched passwords, in that order.
package cms
