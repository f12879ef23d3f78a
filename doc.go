// Package redisreplica impersonates a replica of a single Redis-protocol
// master: it performs the replication handshake, decodes the RDB snapshot
// the master streams back, and then stays attached to the connection
// decoding the ongoing command stream, acknowledging its position with
// periodic REPLCONF ACK heartbeats.
//
// Build a Driver with NewBuilder, supplying at minimum an address and an
// RDB and/or command handler, then call Start. Start blocks until the
// connection ends or the shared running flag is cleared; Close always
// terminates the heartbeat worker before returning.
package redisreplica
