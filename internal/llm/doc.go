// Package llm defines the provider-neutral chat interface used by crew agents.
// Provider adapters live in sub-packages (openai, gemini) and normalise their
// responses and token usage into the types declared here.
package llm
