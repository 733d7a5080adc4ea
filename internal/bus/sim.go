package bus

import (
	"fmt"
	"sync"
)

const (
	simPageSelect = 0xFD
	simPageFrame0 = 0x00
	simPWMBase    = 0x24
)

// Write is one register write seen by a Sim.
type Write struct {
	Addr  uint16
	Reg   byte
	Value byte
	Relax bool
}

// Sim is an in-memory register port. It emulates the page select register
// of the display chips, so register contents can be inspected per page.
type Sim struct {
	mu      sync.Mutex
	present map[uint16]bool
	cols    int
	page    map[uint16]byte
	regs    map[uint16]*[256][256]byte
	writes  []Write
	fail    func(Write) error
}

// NewSim returns a simulated bus with a device at each address. cols is the
// pixel width of one device, used by Pixel.
func NewSim(cols int, addrs ...uint16) *Sim {
	s := &Sim{
		present: make(map[uint16]bool, len(addrs)),
		cols:    cols,
		page:    make(map[uint16]byte, len(addrs)),
		regs:    make(map[uint16]*[256][256]byte, len(addrs)),
	}
	for _, a := range addrs {
		s.present[a] = true
		s.regs[a] = new([256][256]byte)
	}
	return s
}

// SimAddrs returns n consecutive addresses starting at base.
func SimAddrs(base uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = base + uint16(i)
	}
	return out
}

// FailWith installs a hook that can reject writes; nil removes it.
func (s *Sim) FailWith(fn func(Write) error) {
	s.mu.Lock()
	s.fail = fn
	s.mu.Unlock()
}

func (s *Sim) Probe(addr uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present[addr]
}

func (s *Sim) WriteRegister(addr uint16, reg, value byte, relax bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := Write{Addr: addr, Reg: reg, Value: value, Relax: relax}
	if !s.present[addr] {
		return fmt.Errorf("bus: sim: no device at 0x%02x", addr)
	}
	if s.fail != nil {
		if err := s.fail(w); err != nil {
			return err
		}
	}
	s.writes = append(s.writes, w)
	if reg == simPageSelect {
		s.page[addr] = value
		return nil
	}
	s.regs[addr][s.page[addr]][reg] = value
	return nil
}

// Register returns the value of a register in a page.
func (s *Sim) Register(addr uint16, page, reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	regs, ok := s.regs[addr]
	if !ok {
		return 0
	}
	return regs[page][reg]
}

// Pixel reports whether a pixel of a device is switched on and its
// brightness register, both read from frame page 0.
func (s *Sim) Pixel(addr uint16, x, y int) (on bool, duty byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	regs, ok := s.regs[addr]
	if !ok || x < 0 || y < 0 || x >= s.cols {
		return false, 0
	}
	bitReg, pwmReg := y*(s.cols/8)+x/8, simPWMBase+y*s.cols+x
	if pwmReg > 0xFF {
		return false, 0
	}
	frame := &regs[simPageFrame0]
	return frame[bitReg]&(1<<(x%8)) != 0, frame[pwmReg]
}

// Writes returns a copy of every accepted write.
func (s *Sim) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Write, len(s.writes))
	copy(out, s.writes)
	return out
}

// ResetWrites forgets the recorded writes, keeping register contents.
func (s *Sim) ResetWrites() {
	s.mu.Lock()
	s.writes = nil
	s.mu.Unlock()
}

// Close is a no-op; it lets Sim stand in for a real port.
func (s *Sim) Close() error { return nil }

func (s *Sim) String() string {
	return fmt.Sprintf("sim(%d devices)", len(s.present))
}
