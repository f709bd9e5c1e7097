// Package markdown renders .md documents to HTML with goldmark (GFM
// extensions enabled). Raw HTML in the source is kept by goldmark and then
// filtered by a bluemonday UGC policy unless sanitization is turned off with
// documents.sanitize_html: false.
package markdown
