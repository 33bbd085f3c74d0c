// Package run executes crew kickoffs asynchronously. A Service validates and
// stores submitted runs, publishes their ids to a Queue (memory, Redis or
// RabbitMQ), and a Processor claims them from a Store (memory, or MySQL with
// embedded migrations), runs the crew, attaches artifact proofs and records
// the outcome. Retryable failures are re-published until max_retries attempts
// have been made.
package run
