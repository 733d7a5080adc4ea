package matrix

import "sort"

// registerCache shadows the on/off registers of every device. It holds the
// last value successfully written to each register; nothing is read back
// from hardware.
type registerCache struct {
	regs [][]byte
}

func newRegisterCache(devices, registers int) *registerCache {
	c := &registerCache{regs: make([][]byte, devices)}
	for i := range c.regs {
		c.regs[i] = make([]byte, registers)
	}
	return c
}

func (c *registerCache) get(device int, reg byte) byte {
	return c.regs[device][reg-onOffBase]
}

// set stores v and reports whether it differs from the previous value.
func (c *registerCache) set(device int, reg, v byte) bool {
	cur := &c.regs[device][reg-onOffBase]
	if *cur == v {
		return false
	}
	*cur = v
	return true
}

func (c *registerCache) reset() {
	for _, regs := range c.regs {
		clear(regs)
	}
}

// dirtySet tracks, per device, the brightness registers holding something
// other than Baseline.
type dirtySet struct {
	regs []map[byte]struct{}
}

func newDirtySet(devices int) *dirtySet {
	d := &dirtySet{regs: make([]map[byte]struct{}, devices)}
	for i := range d.regs {
		d.regs[i] = make(map[byte]struct{})
	}
	return d
}

func (d *dirtySet) record(device int, reg byte) {
	d.regs[device][reg] = struct{}{}
}

func (d *dirtySet) has(device int, reg byte) bool {
	_, ok := d.regs[device][reg]
	return ok
}

func (d *dirtySet) forget(device int, reg byte) {
	delete(d.regs[device], reg)
}

// drain returns the recorded registers in ascending order and empties the
// device's set.
func (d *dirtySet) drain(device int) []byte {
	set := d.regs[device]
	out := make([]byte, 0, len(set))
	for reg := range set {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	clear(set)
	return out
}

func (d *dirtySet) len(device int) int {
	return len(d.regs[device])
}

func (d *dirtySet) reset() {
	for _, set := range d.regs {
		clear(set)
	}
}
