package resocket

import "sync/atomic"

// Ref identifies one connection attempt. Refs increase monotonically per Socket, starting at 1.
type Ref uint64

type atomicRef struct {
	ref atomic.Uint64
}

func newAtomicRef() *atomicRef {
	return &atomicRef{}
}

func (ic *atomicRef) nextRef() Ref {
	return Ref(ic.ref.Add(1))
}

func (ic *atomicRef) current() Ref {
	return Ref(ic.ref.Load())
}
