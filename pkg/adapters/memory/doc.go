/*
Package memory provides in-memory adapters for every engine port: session
store, block source, content store, and attachment resolver.

They back single-process deployments, the console chat mode, and tests.
*/
package memory
