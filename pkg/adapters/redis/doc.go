// Package redis provides the Redis-backed snapshot store and distributed locker,
// letting several replicas share session ownership.
package redis
