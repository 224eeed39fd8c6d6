/*
Package schema declares plugin settings schemas: the option names, types, and
defaults a plugin exposes to the admin console, plus validation of resolved
values and merging of block-level overrides over defaults.
*/
package schema
