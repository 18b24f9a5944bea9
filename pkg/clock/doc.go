// Package clock provides the Clock and Scheduler abstractions the
// keepalive supervisor and the per-client dispatch loop are built on.
// Tests substitute a fake Clock to drive the keepalive tick logic
// deterministically without sleeping.
package clock
