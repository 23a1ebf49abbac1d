// Package service implements supervision of the psiturk HTTP servers.
//
// Overview
// A Supervisor owns the lifecycle of one named server (experiment or
// dashboard): it knows the endpoint, how to launch the server and, for
// servers exposing a PID endpoint, how to stop it.
//
// Liveness is a TCP connect probe (netscan.Probe). A listener on the port is
// assumed to be the server. Asking "is it running" is cheap and has no side
// effects, so the same predicate drives synchronous checks and the background
// wait (poll.Task) of WaitUntilOnline.
//
// Launching is fire-and-forget:
//
//	Supervisor              Launcher               server
//	    |                      |                      |
//	StartUp -- IsRunning? --> probe                   |
//	    | (not running)        |                      |
//	    |------ Launch ------->| sh -c <command> ---->| (own session)
//	    |<----- launching -----|                      |
//	WaitUntilOnline           ...                     |
//	    | poll.Task: IsRunning every interval ------->| accept
//	    | onReady() once                              |
//
// Shutdown asks the server for its pid (GET /ppid) and kills that pid with
// SIGKILL on the local machine, so the server and psiturk have to share a
// host.
//
// Invariants:
//   - StartUp never launches a second process when the port already listens.
//   - The launched process is not tracked, neither its output nor exit state.
//   - WaitUntilOnline fires its callback at most once.
//   - Kill failures are logged, not returned.
//
// Watcher schedules periodic status sweeps of several supervisors with gocron
// and is what `psiturk watch` runs.
package service
