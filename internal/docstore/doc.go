// Package docstore stores documents as flat files in a single directory.
//
// # Overview
//
// Each document is one regular file. The file name is the document's
// identity (case-sensitive) and the text after the last '.' is its
// extension, which decides how the document is presented:
//
//   - .md documents are KindMarkdown and are rendered to HTML
//   - everything else is KindPlainText and is served verbatim
//
// # Name Validation
//
// Create validates the requested name in a fixed order and reports the
// first failure:
//
//  1. surrounding whitespace is trimmed; an empty result is ErrEmptyName
//  2. a missing or empty extension is ErrInvalidExtension
//  3. an extension outside the active Policy is ErrInvalidExtension
//  4. an existing document with the trimmed name is ErrDuplicateName
//  5. path separators, NUL bytes or a leading '.' are ErrInvalidName
//
// # Extension Policy
//
// PolicyStrict (the default) accepts only .txt and .md. PolicyAny accepts
// any non-empty extension. Policy.Message returns the text shown to users
// when an extension is rejected.
//
// # Safety
//
// Names that cannot be resolved inside the directory are never touched:
// Exists reports false and Read, Update and Delete return ErrNotFound.
// Update refuses to create documents and returns ErrNotFound for a missing
// target.
//
// # Concurrency
//
// Mutations are serialized by a store-wide mutex. Sequences spanning several
// calls (read then update) are not atomic; the last write wins.
package docstore
