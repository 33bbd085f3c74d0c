// Package descriptor holds the loosely structured records that agents pass to
// the scaffold tools: data vars, maps, functions, error codes and test
// scenarios. Lists decode element by element so one malformed entry never
// fails a whole call, and scalar fields keep their JSON literal text.
package descriptor
