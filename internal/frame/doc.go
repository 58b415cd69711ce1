// Package frame defines the payload vocabulary of the engine: pixel and
// signal formats, the buffer classes the resource pool allocates by, and
// the raw Buffer type that leases hand out.
//
// A Buffer is dumb storage. All sharing, exclusivity, and recycling rules
// are enforced by the pool package; code that holds a plain *Buffer outside
// a lease must treat its bytes as read-only.
package frame
