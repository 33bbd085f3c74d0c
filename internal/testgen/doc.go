// Package testgen renders Clarinet/Vitest test scaffolds for Clarity contracts.
// Snippets harvested from the Clarinet JS SDK guides are bucketed by keyword
// and reused for the import header, assertions and scenario bodies.
package testgen
