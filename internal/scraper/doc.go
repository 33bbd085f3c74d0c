// Package scraper fetches documentation pages with colly and extracts Clarity
// code examples and explanations from them with goquery. Every per-URL failure
// is skipped; only a cancelled context or an encoding failure surfaces as an
// error object.
package scraper
