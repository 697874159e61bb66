package ecs

// SlotID encodes a 32-bit slot index in the lower bits and a 32-bit spawn
// generation in the upper bits. Generation increments every time the slot is
// overwritten by Spawn, which invalidates references to the previous occupant.
type SlotID uint64

// InvalidSlot is returned by Spawn on a disposed pool.
const InvalidSlot SlotID = ^SlotID(0)

func NewSlotID(index uint32, generation uint32) SlotID {
	return SlotID(uint64(generation)<<32 | uint64(index))
}

func (id SlotID) Index() int          { return int(uint32(id)) }
func (id SlotID) Generation() uint32 { return uint32(id >> 32) }
func (id SlotID) Valid() bool        { return id != InvalidSlot }
