// Package pool recycles frame buffers so steady-state rendering allocates
// nothing. Buffers are grouped into classes (format plus geometry); each
// class has a bounded budget of buffers and a free list.
//
// # Leases
//
// Callers never hold a bare buffer, only a Lease. A fresh lease is
// exclusive: its holder may write. Publishing flips the lease to
// read-shared: clones may be handed to any number of readers, writing is
// refused, and the buffer returns to the free list only when every handle
// has been released. Release is idempotent per handle, so defer-heavy code
// cannot double-free a buffer.
//
// # Budgets
//
// Each class is capped at its high-water mark. Acquire blocks until a
// buffer frees up or the context ends; TryAcquire fails fast with
// ErrPoolExhausted. The cap is enforced with a token channel, which is
// what makes blocking acquisition cancellable without a condition
// variable.
package pool
