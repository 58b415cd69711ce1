package graph

import "errors"

// Edit validation errors. Callers branch on these with errors.Is; the
// wrapped message carries the offending IDs and ports.
var (
	// ErrNotFound reports a node, port owner, or wire that does not exist.
	ErrNotFound = errors.New("graph: not found")

	// ErrDuplicateNode reports an AddNode whose type.name is already taken.
	ErrDuplicateNode = errors.New("graph: duplicate node")

	// ErrUnknownPort reports a wire endpoint naming a port the node type
	// does not declare, or one on the wrong side (input vs output).
	ErrUnknownPort = errors.New("graph: unknown port")

	// ErrTypeMismatch reports a wire between ports of different types.
	ErrTypeMismatch = errors.New("graph: port type mismatch")

	// ErrPortOccupied reports a second wire into an input port.
	ErrPortOccupied = errors.New("graph: input port occupied")

	// ErrWouldCycle reports a wire that would close a directed cycle.
	ErrWouldCycle = errors.New("graph: wire would create cycle")

	// ErrInvalidSpec reports a malformed node spec or port reference.
	ErrInvalidSpec = errors.New("graph: invalid spec")

	// ErrUnknownType reports a node type the catalog cannot resolve.
	ErrUnknownType = errors.New("graph: unknown node type")
)
