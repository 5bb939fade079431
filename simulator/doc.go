// Package simulator provides an in-memory storage module that speaks the
// serial file protocol.
//
// A Module answers commands the way uMMC, uMP3 and rMP3 firmware does,
// in either dialect, and keeps its card contents in memory. It implements
// the roguesd.Port contract, so it can stand in for a serial link:
//
//	mod := simulator.New(simulator.DefaultConfig())
//	mod.WriteFile("/log.txt", []byte("hello\n"))
//
//	client := roguesd.New(mod)
//	if err := client.Sync(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Fault injection is available for tests:
//   - FailNext: the next command fails with a given error code
//   - Inject: raw bytes are queued in front of the next reply
//   - SetSilent: the module stops answering
//
// On legacy firmware the write time-out setting ends a pending write as
// soon as the host starts waiting for a reply, which is when the link
// would have gone idle on real hardware.
package simulator
