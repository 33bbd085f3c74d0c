// Package crew runs the sequential three-agent pipeline. Agent and task
// definitions come from YAML files keyed by identifier; each agent talks to an
// LLM through a tool-calling loop and each task receives the outputs of the
// tasks before it as context.
package crew
