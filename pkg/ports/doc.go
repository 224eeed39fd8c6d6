/*
Package ports defines the interfaces between the Wattle engine core and its
external collaborators (block persistence, session state, content store,
attachment storage, settings, channels, distributed locking).

Following Hexagonal Architecture, the engine depends only on these
abstractions; adapters live in pkg/adapters.
*/
package ports
