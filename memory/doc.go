// Package memory manages host access to the module's linear memory.
//
// The module's memory is a single growable byte store. When it grows the
// backing slice may be reallocated, so any slice taken before the growth
// points at dead bytes. Linear keeps the root reference and a generation
// counter; every growth re-derives the root and bumps the generation:
//
//	lin := memory.New(instance.Memory())
//	v, err := lin.View(loc.Start, loc.Length)
//	if err != nil {
//	    return err
//	}
//	if err := v.CopyIn(row); err != nil { // fails if memory grew since View
//	    return err
//	}
//
// A View must never be held across a call into the module. Growth is also
// detected on the next access when the module grew without notifying the
// host.
package memory
