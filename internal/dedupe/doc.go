// Package dedupe suppresses redelivered platform messages by tracking
// recently seen message IDs in a time-bounded cache.
package dedupe
