package scheduler

// pcg32 is a minimal PCG-XSH-RR 64/32 generator: 64 bits of state, a fixed
// odd increment derived from a stream selector, 32-bit output via xorshift
// plus a state-dependent rotation. This is the same construction the
// scheduler's original prototype used; only self-consistency across runs
// of this implementation is required; see scheduler.go's Next.
type pcg32 struct {
	state uint64
	inc   uint64
}

const pcg32Multiplier = 6364136223846793005

// newPCG32 seeds a generator exactly the way the reference PCG32
// implementation does: zero state, derive the increment from the stream
// selector, step once, add the seed, step again.
func newPCG32(seed, stream uint64) *pcg32 {
	p := &pcg32{state: 0, inc: (stream << 1) | 1}
	p.next32()
	p.state += seed
	p.next32()
	return p
}

func rotr32(value uint32, rot uint32) uint32 {
	rot &= 31
	return (value >> rot) | (value << ((32 - rot) & 31))
}

// next32 advances the generator and returns the next 32-bit output.
func (p *pcg32) next32() uint32 {
	old := p.state
	p.state = old*pcg32Multiplier + p.inc

	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return rotr32(xorshifted, rot)
}

// uniform01 draws one sample strictly inside (0, 1) from the generator's
// next 32-bit output. Mapping the 32-bit output space onto
// (0, 1) rather than [0, 1) avoids ever producing exactly zero, which
// would make the exponential sample's logarithm diverge.
func (p *pcg32) uniform01() float64 {
	raw := p.next32()
	return (float64(raw) + 1.0) / 4294967297.0
}
