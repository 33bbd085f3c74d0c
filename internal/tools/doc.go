// Package tools exposes the scaffold generators and the documentation scraper
// as named tools. Each tool is built from a typed Go handler; its parameter
// schema is reflected with invopop/jsonschema and its input is validated with
// go-playground/validator before the handler runs.
package tools
