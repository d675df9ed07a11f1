/*
Package cache provides Redis-backed cache management: connection pooling,
periodic health checks, and JSON serialization helpers.

# Overview

Manager wraps a go-redis client and exposes a small key/value surface
(Get/Set/Delete/Exists/Expire) plus JSON convenience methods, on top of
connection lifecycle management (dial, ping, health-check loop, close).

# Core types

  - Manager: owns the Redis client and pool configuration.
  - Config: address, credentials, pool sizing, default TTL, health-check
    interval.
  - Stats: point-in-time cache statistics (hit rate, key count, memory,
    connections).

# Capabilities

  - String and JSON reads/writes.
  - Connection pooling via PoolSize/MinIdleConns.
  - Background health checks, logged via zap on failure.
  - Graceful Close of the underlying Redis connection.
  - ErrCacheMiss sentinel and IsCacheMiss for miss detection.
*/
package cache
