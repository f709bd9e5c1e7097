// Package credentials stores user accounts as a YAML mapping of username to
// bcrypt password hash.
//
// The file is always read and written whole:
//
//	admin: $2a$10$...
//	editor: $2a$10$...
//
// A missing file is treated as an empty mapping. folio never seeds a default
// account; the first account comes from "folio adduser" or the signup page.
//
// Save writes to a temporary file in the same directory and renames it over
// the original, so readers never observe a partial mapping. CreateAccount
// holds the store mutex across its read-modify-write.
//
// Verify compares through bcrypt in every case, including unknown usernames
// (against a fixed dummy hash), so response time does not reveal whether an
// account exists. A file that cannot be read or parsed is an error, never a
// failed login.
//
// Passwords longer than MaxPasswordBytes are rejected by CreateAccount with
// ErrPasswordTooLong, since bcrypt would silently ignore the excess.
package credentials
