// Package knowledge offers a small static knowledge base of Clarity snippets
// that agents can pull into their prompts by keyword.
package knowledge
