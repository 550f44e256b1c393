package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mpsim/emu"
	"github.com/sarchlab/mpsim/loader"
)

// testSegment describes one program header of a generated ELF.
type testSegment struct {
	typ     uint32
	flags   uint32
	addr    uint64
	data    []byte
	memSize uint64
}

const (
	machineAArch64 = 183
	machineX86_64  = 62
	ptLoad         = 1
	ptNote         = 4
)

// writeELF64 writes a little-endian ELF64 executable with the given
// program headers, their contents following the headers.
func writeELF64(path string, machine uint16, entry uint64, segs ...testSegment) {
	const ehSize, phSize = 64, 56

	hdr := make([]byte, ehSize)
	copy(hdr[0:4], []byte{0x7f, 'E', 'L', 'F'})
	hdr[4] = 2 // 64-bit
	hdr[5] = 1 // little endian
	hdr[6] = 1 // version
	binary.LittleEndian.PutUint16(hdr[16:18], 2) // executable
	binary.LittleEndian.PutUint16(hdr[18:20], machine)
	binary.LittleEndian.PutUint32(hdr[20:24], 1)
	binary.LittleEndian.PutUint64(hdr[24:32], entry)
	binary.LittleEndian.PutUint64(hdr[32:40], ehSize)
	binary.LittleEndian.PutUint16(hdr[52:54], ehSize)
	binary.LittleEndian.PutUint16(hdr[54:56], phSize)
	binary.LittleEndian.PutUint16(hdr[56:58], uint16(len(segs)))

	out := hdr
	offset := uint64(ehSize + phSize*len(segs))
	var body []byte

	for _, s := range segs {
		ph := make([]byte, phSize)
		memSize := s.memSize
		if memSize == 0 {
			memSize = uint64(len(s.data))
		}
		binary.LittleEndian.PutUint32(ph[0:4], s.typ)
		binary.LittleEndian.PutUint32(ph[4:8], s.flags)
		binary.LittleEndian.PutUint64(ph[8:16], offset)
		binary.LittleEndian.PutUint64(ph[16:24], s.addr)
		binary.LittleEndian.PutUint64(ph[24:32], s.addr)
		binary.LittleEndian.PutUint64(ph[32:40], uint64(len(s.data)))
		binary.LittleEndian.PutUint64(ph[40:48], memSize)
		binary.LittleEndian.PutUint64(ph[48:56], 0x1000)

		out = append(out, ph...)
		body = append(body, s.data...)
		offset += uint64(len(s.data))
	}

	Expect(os.WriteFile(path, append(out, body...), 0o644)).To(Succeed())
}

var _ = Describe("Loader", func() {
	var tempDir string

	// mov x0, #42; ret
	code := []byte{0x40, 0x05, 0x80, 0xd2, 0xc0, 0x03, 0x5f, 0xd6}

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	Describe("Load", func() {
		It("should read the entry point and segments", func() {
			path := filepath.Join(tempDir, "test.elf")
			writeELF64(path, machineAArch64, 0x400000,
				testSegment{typ: ptLoad, flags: 0x5, addr: 0x400000, data: code})

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint64(0x400000)))
			Expect(prog.InitialSP).To(Equal(uint64(loader.DefaultStackTop)))
			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].Data).To(Equal(code))
			Expect(prog.Segments[0].Flags).To(Equal(
				loader.SegmentFlagRead | loader.SegmentFlagExecute))
		})

		It("should load code and data segments", func() {
			path := filepath.Join(tempDir, "multi.elf")
			writeELF64(path, machineAArch64, 0x400000,
				testSegment{typ: ptLoad, flags: 0x5, addr: 0x400000, data: code},
				testSegment{typ: ptLoad, flags: 0x6, addr: 0x410000, data: []byte{1, 2, 3, 4}})

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))
			Expect(prog.Segments[1].VirtAddr).To(Equal(uint64(0x410000)))
			Expect(prog.Segments[1].Flags & loader.SegmentFlagWrite).NotTo(BeZero())
		})

		It("should skip segments that are not PT_LOAD", func() {
			path := filepath.Join(tempDir, "note.elf")
			writeELF64(path, machineAArch64, 0x400000,
				testSegment{typ: ptNote, flags: 0x4})

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(BeEmpty())
		})

		It("should reject an x86-64 ELF", func() {
			path := filepath.Join(tempDir, "x86.elf")
			writeELF64(path, machineX86_64, 0)

			_, err := loader.Load(path)
			Expect(err).To(MatchError(ContainSubstring("not an ARM64 ELF")))
		})

		It("should reject a file that is not ELF", func() {
			path := filepath.Join(tempDir, "text")
			Expect(os.WriteFile(path, []byte("hello"), 0o644)).To(Succeed())

			_, err := loader.Load(path)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.elf"))
			Expect(err).To(MatchError(ContainSubstring("failed to open ELF file")))
		})
	})

	Describe("LoadInto", func() {
		It("should copy data and zero-fill BSS", func() {
			path := filepath.Join(tempDir, "bss.elf")
			writeELF64(path, machineAArch64, 0x400000,
				testSegment{typ: ptLoad, flags: 0x6, addr: 0x500000,
					data: []byte{0xAA, 0xBB}, memSize: 0x10})

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())

			mem := emu.NewMemory()
			mem.Write8(0x500004, 0xFF)
			prog.LoadInto(mem)

			Expect(mem.Read8(0x500000)).To(Equal(byte(0xAA)))
			Expect(mem.Read8(0x500001)).To(Equal(byte(0xBB)))
			Expect(mem.Read8(0x500004)).To(BeZero())
		})
	})

	Describe("LoadRaw", func() {
		It("should place the image at the base address", func() {
			path := filepath.Join(tempDir, "prog.bin")
			Expect(os.WriteFile(path, code, 0o644)).To(Succeed())

			prog, err := loader.LoadRaw(path, 0x1000)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint64(0x1000)))

			mem := emu.NewMemory()
			prog.LoadInto(mem)
			Expect(mem.Read32(0x1000)).To(Equal(uint32(0xd2800540)))
		})

		It("should reject an empty image", func() {
			path := filepath.Join(tempDir, "empty.bin")
			Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())

			_, err := loader.LoadRaw(path, 0x1000)
			Expect(err).To(MatchError(ContainSubstring("empty")))
		})
	})
})
