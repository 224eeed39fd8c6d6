/*
Package observability exposes the engine's prometheus metric set, wired in
through lifecycle hooks so the turn pipeline stays metrics-agnostic.
*/
package observability
