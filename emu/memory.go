package emu

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// Memory is a sparse, little-endian byte-addressable memory. Untouched
// bytes read as zero.
type Memory struct {
	pages map[uint64]*[pageSize]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[pageSize]byte)}
}

func (m *Memory) page(addr uint64, create bool) *[pageSize]byte {
	p := m.pages[addr>>pageBits]
	if p == nil && create {
		p = new([pageSize]byte)
		m.pages[addr>>pageBits] = p
	}
	return p
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) byte {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&pageMask]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, value byte) {
	m.page(addr, true)[addr&pageMask] = value
}

func (m *Memory) read(addr uint64, size int) uint64 {
	var v uint64
	for i := 0; i < size; i++ {
		v |= uint64(m.Read8(addr+uint64(i))) << (8 * i)
	}
	return v
}

func (m *Memory) write(addr uint64, size int, value uint64) {
	for i := 0; i < size; i++ {
		m.Write8(addr+uint64(i), byte(value>>(8*i)))
	}
}

// Read16 reads a 16-bit little-endian value.
func (m *Memory) Read16(addr uint64) uint16 {
	return uint16(m.read(addr, 2))
}

// Read32 reads a 32-bit little-endian value.
func (m *Memory) Read32(addr uint64) uint32 {
	return uint32(m.read(addr, 4))
}

// Read64 reads a 64-bit little-endian value.
func (m *Memory) Read64(addr uint64) uint64 {
	return m.read(addr, 8)
}

// Write32 writes a 32-bit little-endian value.
func (m *Memory) Write32(addr uint64, value uint32) {
	m.write(addr, 4, uint64(value))
}

// Write64 writes a 64-bit little-endian value.
func (m *Memory) Write64(addr uint64, value uint64) {
	m.write(addr, 8, value)
}

// LoadProgram copies data into memory starting at addr.
func (m *Memory) LoadProgram(addr uint64, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint64(i), b)
	}
}

// LoadWords stores instruction words at consecutive addresses from addr.
func (m *Memory) LoadWords(addr uint64, words ...uint32) {
	for i, w := range words {
		m.Write32(addr+uint64(4*i), w)
	}
}
