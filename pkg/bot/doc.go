/*
Package bot coordinates conversation turns.

The Coordinator owns the turn pipeline: lock the subscriber, match the
incoming event against the block graph, execute the matched block and its
attached chain, capture declared variables, move the conversation cursor,
and hand back the ordered envelope batch. Matching lives in package matcher,
rendering in package render, plugin execution in package plugin; this
package only sequences them.
*/
package bot
