// Package dedupe provides a time-bounded cache used to recognise repeated
// requests and replay the response recorded for the first one.
package dedupe
