/*
Package session serializes conversation turns per subscriber.

It combines an in-process reference-counted mutex map with an optional
distributed locker so that a subscriber's turns stay strictly ordered even
when the engine runs as multiple replicas behind a load balancer.
*/
package session
