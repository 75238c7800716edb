// Package bank holds the withdrawal domain: the account aggregate, the
// command pipeline, and the integration events staged through the outbox.
//
// Every state-changing command runs through a Pipeline whose unit-of-work
// middleware commits exactly once, and only when the command carries the
// Mutation capability and its handler succeeded. The account mutation and
// the staged outbox record share that commit: one is durable if and only if
// the other is.
package bank
