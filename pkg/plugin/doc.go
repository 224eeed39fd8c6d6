/*
Package plugin provides the extension runtime of the Wattle engine: a
name→implementation registry built at startup, and a Runtime that invokes a
plugin's Process contract under a hard timeout with fallback-on-error.

Plugins compute envelopes programmatically, typically by calling external
services (LLMs, content search). Failures are sandboxed: a crashing or
hanging plugin degrades to its declared fallback_message (or a generic
failure text) and never breaks the conversation.
*/
package plugin
