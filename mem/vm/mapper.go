package vm

import "math/rand/v2"

// Page geometry used by the address mappers.
const (
	Log2PageSize = 12
	PageSize     = 1 << Log2PageSize

	pageOffsetMask = PageSize - 1
	numPermBytes   = 4
)

// A Mapper translates virtual addresses of one core with a fixed random
// permutation. Each of the four low bytes of the virtual page number goes
// through a 256-entry byte permutation. The higher page-number bits and the
// page offset are kept, so the translation is a bijection.
type Mapper struct {
	coreID int
	table  [256]uint8
}

// NewMapper creates the mapper of a core. The permutation only depends on the
// core id.
func NewMapper(coreID int) *Mapper {
	m := &Mapper{coreID: coreID}
	rng := rand.New(rand.NewPCG(uint64(coreID), 0))

	m.table[0] = 0
	for i := 1; i < len(m.table); i++ {
		j := rng.IntN(i + 1)
		m.table[i] = m.table[j]
		m.table[j] = uint8(i)
	}

	return m
}

// CoreID returns the core that the mapper serves.
func (m *Mapper) CoreID() int {
	return m.coreID
}

// Translate returns the physical address of a virtual address.
func (m *Mapper) Translate(vAddr uint64) uint64 {
	vpn := vAddr >> Log2PageSize

	var low uint64
	for i := 0; i < numPermBytes; i++ {
		shift := uint(8 * i)
		b := uint8(vpn >> shift)
		low |= uint64(m.table[b]) << shift
	}

	ppn := vpn&^0xffffffff | low

	return ppn<<Log2PageSize | vAddr&pageOffsetMask
}
