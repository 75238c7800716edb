// Package outbox implements the transactional outbox subsystem used by the
// withdrawal service.
//
// Typical flow:
//  1. Within a business unit of work, stage integration events using a Writer.
//  2. Run a Dispatcher with a storage-specific Store to poll pending records,
//     decode them through a Codec, and hand them to a Publisher.
//  3. On success the record is marked processed; on failure it is marked
//     failed and stays parked until an operator re-queues it.
//
// Delivery is at-least-once: a crash between a successful publish and the
// processed mark causes redelivery on the next cycle, so consumers must
// deduplicate by event id. Run a single Dispatcher instance per outbox table;
// concurrent dispatchers require a store-level claim mechanism that the base
// stores do not provide.
package outbox
