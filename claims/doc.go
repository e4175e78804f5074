// Package claims implements the exactly-once claim protocol on top of a
// core.IdempotencyStore. The coordinator never reads before it writes: the
// single conditional insert performed by the store decides which concurrent
// invocation owns a key.
package claims
