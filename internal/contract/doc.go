// Package contract renders Clarity smart-contract scaffolds from structured
// descriptors: data vars, maps, functions and error constants.
package contract
