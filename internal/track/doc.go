// Package track supervises the hook scripts a controller runs on behalf of jobs.
//
// Every script is owned by one worker goroutine that starts the process and
// blocks on its exit. The worker registers the script with a Tracker before it
// waits, asks Killed once the wait status is known, and deregisters itself when
// it is done. Administrative callers can kill the scripts of one job (KillJob)
// or force-terminate every tracked script and wait for all of them to be
// retired (Flush).
//
// Records live in exactly one of two registries. The active registry holds
// scripts believed to be running. Flush moves the whole active registry into
// the quiescence registry, starts one termination supervisor per record and
// waits until the supervisors have retired them all. A supervisor sends a
// single SIGKILL to the script's process group, then waits up to the cleanup
// timeout for the owning worker to acknowledge through Killed.
//
// Lock domains: the active registry, the quiescence registry and each record's
// acknowledgement state. Flush is the only operation that holds two of them
// at once, always quiescence before active.
package track
