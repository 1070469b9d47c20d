// Package rate throttles failed credential checks with Redis counters.
//
// Windows are fixed: INCR, plus EXPIRE on the first hit of a window. Keys are
// "<prefix>:u:<username>" and, with IP throttling on, "<prefix>:ip:<addr>".
package rate
