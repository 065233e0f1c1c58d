// Package zone implements a tagged-bump region allocator over a single
// fixed-size heap, carved from the largest contiguous block of backing
// memory available at startup. It is grounded on mt32-pi's
// CZoneAllocator (original_source/include/zoneallocator.h): a next-fit
// search over a doubly-linked list of blocks (NilPtr-terminated; the
// search wraps from the last block back to the first), split-on-alloc,
// coalesce-on-free, and tag-based bulk release so a whole subsystem
// (e.g. the SoundFont engine) can release everything it owns in one call
// without tracking individual pointers.
//
// Every allocated block is bracketed by a magic sentinel at both ends;
// corruption (double free, write past the end of a block) is detected
// at Free time rather than silently accepted.
package zone

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/sbcsynth/core/internal/apperr"
)

// Tag groups allocations for bulk release via FreeTag. The set is fixed
// at build time (see DESIGN.md: Open Question — tag growth is closed,
// not runtime-extensible, matching the appliance's fixed synth-engine
// set).
type Tag uint32

const (
	// TagFree marks a block's header as not currently allocated. It is
	// never passed to Alloc.
	TagFree Tag = 0

	// TagUncategorized is the default catch-all tag.
	TagUncategorized Tag = 1

	// TagSoundFontEngine groups every allocation made on behalf of the
	// SoundFont synthesis engine, so switching or unloading a font can
	// release its entire footprint with one FreeTag call.
	TagSoundFontEngine Tag = 2
)

const (
	blockMagic    uint32 = 0xDA1EDEAD
	headerSize           = 24 // size(8) + next(4) + prev(4) + tag(4) + magic(4)
	trailerSize          = 4
	minFragment          = 16
	alignment            = 16
)

// Ptr is an opaque handle to an allocated block: a byte offset into the
// allocator's backing heap. The zero value is the offset of the first
// block and can be a live allocation; NilPtr marks "no block".
type Ptr int64

// NilPtr is the handle passed to Realloc to request a fresh allocation.
const NilPtr Ptr = -1

// Allocator is a single contiguous heap with next-fit block search.
// All exported methods are safe to call concurrently: the critical
// section is a short list walk plus pointer fixups, guarded by a single
// mutex standing in for the firmware's IRQ-level spinlock (§3: adapter
// libraries allocate from any task, so this section must be interrupt
// safe).
type Allocator struct {
	mu sync.Mutex

	heap    []byte
	current Ptr // next-fit search cursor; NilPtr means "start of list"
	first   Ptr // offset of the first real block, i.e. 0
	count   int
}

// New carves an allocator out of a byte slice of backing memory. size is
// rounded down to a multiple of the block alignment.
func New(size int) (*Allocator, error) {
	size -= size % alignment

	if size < headerSize+trailerSize+alignment {
		return nil, apperr.New(apperr.KindFatal, "zone.New", fmt.Errorf("heap of %d bytes too small", size))
	}

	a := &Allocator{heap: make([]byte, size), first: 0}
	a.Clear()

	return a, nil
}

// Clear reinitializes the heap to a single free block spanning its
// entire extent, discarding every outstanding allocation.
func (a *Allocator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.clearLocked()
}

func (a *Allocator) clearLocked() {
	for i := range a.heap {
		a.heap[i] = 0
	}

	a.writeHeader(0, blockHeader{size: uint64(len(a.heap)), next: NilPtr, prev: NilPtr, tag: TagFree})
	a.current = 0
	a.count = 0
}

// GetAllocCount returns the number of currently allocated (non-free)
// blocks.
func (a *Allocator) GetAllocCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.count
}

type blockHeader struct {
	size uint64
	next Ptr
	prev Ptr
	tag  Tag
}

func (a *Allocator) readHeader(p Ptr) blockHeader {
	b := a.heap[p:]

	return blockHeader{
		size: binary.LittleEndian.Uint64(b[0:8]),
		next: Ptr(int32(binary.LittleEndian.Uint32(b[8:12]))),
		prev: Ptr(int32(binary.LittleEndian.Uint32(b[12:16]))),
		tag:  Tag(binary.LittleEndian.Uint32(b[16:20])),
	}
}

func (a *Allocator) writeHeader(p Ptr, h blockHeader) {
	b := a.heap[p:]
	binary.LittleEndian.PutUint64(b[0:8], h.size)
	binary.LittleEndian.PutUint32(b[8:12], uint32(int32(h.next)))
	binary.LittleEndian.PutUint32(b[12:16], uint32(int32(h.prev)))
	binary.LittleEndian.PutUint32(b[16:20], uint32(h.tag))
	binary.LittleEndian.PutUint32(b[20:24], blockMagic)
	a.writeTrailer(p, h.size)
}

func (a *Allocator) writeTrailer(p Ptr, size uint64) {
	binary.LittleEndian.PutUint32(a.heap[int64(p)+int64(size)-trailerSize:], blockMagic)
}

func (a *Allocator) headerMagic(p Ptr) uint32 {
	return binary.LittleEndian.Uint32(a.heap[int64(p)+20:])
}

func (a *Allocator) trailerMagic(p Ptr, size uint64) uint32 {
	return binary.LittleEndian.Uint32(a.heap[int64(p)+int64(size)-trailerSize:])
}

// poison invalidates a header that has been absorbed into a neighbour,
// so a stale Ptr captured before a merge is rejected by magic checks
// instead of being misread as a live block.
func (a *Allocator) poison(p Ptr) {
	binary.LittleEndian.PutUint32(a.heap[int64(p)+20:], 0)
}

func roundUp(n int) uint64 {
	total := uint64(headerSize + n + trailerSize)
	if rem := total % alignment; rem != 0 {
		total += alignment - rem
	}

	return total
}

// Alloc reserves at least n bytes tagged with tag, returning a handle to
// the block, or an error if no sufficiently large free block exists
// anywhere in the heap.
func (a *Allocator) Alloc(n int, tag Tag) (Ptr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocLocked(n, tag)
}

func (a *Allocator) allocLocked(n int, tag Tag) (Ptr, error) {
	want := roundUp(n)

	start := a.current
	if start < 0 {
		start = a.first
	}

	p := start
	scanned := 0
	total := int(len(a.heap) / alignment) // upper bound on distinct blocks; guards against list corruption loops

	for {
		h := a.readHeader(p)

		if h.tag == TagFree && h.size >= want {
			a.splitAndTake(p, h, want, tag)
			a.count++

			return p, nil
		}

		p = h.next
		if p == NilPtr {
			p = a.first
		}

		scanned++
		if p == start || scanned > total {
			return NilPtr, apperr.New(apperr.KindResourceAbsent, "zone.Alloc", fmt.Errorf("no free block for %d bytes", n))
		}
	}
}

// splitAndTake carves `want` bytes off the free block at p (header h),
// leaving the remainder as a new free block when it is large enough to
// be useful, and marks the taken block with tag.
func (a *Allocator) splitAndTake(p Ptr, h blockHeader, want uint64, tag Tag) {
	remainder := h.size - want

	if remainder >= minFragment {
		tail := p + Ptr(want)
		tailHeader := blockHeader{size: remainder, next: h.next, prev: p, tag: TagFree}
		a.writeHeader(tail, tailHeader)

		if h.next != NilPtr {
			next := a.readHeader(h.next)
			next.prev = tail
			a.writeHeader(h.next, next)
		}

		h.size = want
		h.next = tail
	}

	h.tag = tag
	a.writeHeader(p, h)
	a.current = h.next
}

// Free releases the block at p. Corruption — a bad magic, or a block
// that is already free — is detected and refused without mutating the
// heap (§7: heap corruption never panics the allocator, it logs and
// continues).
func (a *Allocator) Free(p Ptr) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.freeLocked(p)
}

func (a *Allocator) freeLocked(p Ptr) error {
	if p < a.first || int64(p) >= int64(len(a.heap)) {
		return apperr.New(apperr.KindCorruption, "zone.Free", fmt.Errorf("pointer %d out of range", p))
	}

	if a.headerMagic(p) != blockMagic {
		return apperr.New(apperr.KindCorruption, "zone.Free", fmt.Errorf("bad header magic at %d", p))
	}

	h := a.readHeader(p)

	if a.trailerMagic(p, h.size) != blockMagic {
		return apperr.New(apperr.KindCorruption, "zone.Free", fmt.Errorf("bad trailer magic at %d", p))
	}

	if h.tag == TagFree {
		return apperr.New(apperr.KindCorruption, "zone.Free", fmt.Errorf("double free at %d", p))
	}

	h.tag = TagFree
	a.writeHeader(p, h)
	a.count--

	p, h = a.coalescePrev(p, h)
	a.coalesceNext(p, h)

	return nil
}

func (a *Allocator) coalescePrev(p Ptr, h blockHeader) (Ptr, blockHeader) {
	if h.prev == NilPtr {
		return p, h
	}

	prev := a.readHeader(h.prev)
	if prev.tag != TagFree {
		return p, h
	}

	prev.size += h.size
	prev.next = h.next

	if h.next != NilPtr {
		next := a.readHeader(h.next)
		next.prev = h.prev
		a.writeHeader(h.next, next)
	}

	a.poison(p)
	a.writeHeader(h.prev, prev)

	if a.current == p {
		a.current = h.prev
	}

	return h.prev, prev
}

func (a *Allocator) coalesceNext(p Ptr, h blockHeader) {
	if h.next == NilPtr {
		return
	}

	next := a.readHeader(h.next)
	if next.tag != TagFree {
		return
	}

	h.size += next.size

	if next.next != NilPtr {
		nextNext := a.readHeader(next.next)
		nextNext.prev = p
		a.writeHeader(next.next, nextNext)
	}

	h.next = next.next
	a.poison(p + Ptr(h.size-next.size)) // poison the absorbed block's header (old offset of `next`)
	a.writeHeader(p, h)

	if a.current == p+Ptr(h.size-next.size) {
		a.current = p
	}
}

// FreeTag releases every block tagged t. Blocks are collected in a
// read-only pass first, since freeing one may coalesce — and thereby
// invalidate — an adjacent block also queued for release; any offset
// that a prior release already absorbed is skipped (its header magic
// no longer matches, see poison).
func (a *Allocator) FreeTag(t Tag) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var targets []Ptr

	p := a.first
	for {
		h := a.readHeader(p)
		if h.tag == t {
			targets = append(targets, p)
		}

		p = h.next
		if p == NilPtr {
			break
		}
	}

	for _, t := range targets {
		if a.headerMagic(t) != blockMagic {
			continue // absorbed by an earlier release in this batch
		}

		h := a.readHeader(t)
		if h.tag == TagFree {
			continue
		}

		if err := a.freeLocked(t); err != nil {
			return err
		}
	}

	return nil
}

// Realloc resizes the allocation at p to n bytes, preferring an in-place
// shrink/expand and falling back to allocate-copy-free.
func (a *Allocator) Realloc(p Ptr, n int, tag Tag) (Ptr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p == NilPtr {
		return a.allocLocked(n, tag)
	}

	h := a.readHeader(p)
	want := roundUp(n)

	switch {
	case want == h.size:
		h.tag = tag
		a.writeHeader(p, h)

		return p, nil
	case want < h.size:
		return a.shrinkLocked(p, h, want, tag)
	default:
		if np, ok := a.tryExpandInPlace(p, h, want, tag); ok {
			return np, nil
		}

		return a.reallocCopy(p, h, n, tag)
	}
}

func (a *Allocator) shrinkLocked(p Ptr, h blockHeader, want uint64, tag Tag) (Ptr, error) {
	remainder := h.size - want
	if remainder < minFragment {
		h.tag = tag
		a.writeHeader(p, h)

		return p, nil
	}

	tail := p + Ptr(want)
	oldNext := h.next

	h.size = want
	h.tag = tag
	h.next = tail
	a.writeHeader(p, h)

	tailHeader := blockHeader{size: remainder, next: oldNext, prev: p, tag: TagFree}
	a.writeHeader(tail, tailHeader)

	if oldNext != NilPtr {
		next := a.readHeader(oldNext)
		next.prev = tail
		a.writeHeader(oldNext, next)
	}

	if a.current == NilPtr {
		a.current = tail
	}

	a.coalesceNext(tail, a.readHeader(tail))

	return p, nil
}

func (a *Allocator) tryExpandInPlace(p Ptr, h blockHeader, want uint64, tag Tag) (Ptr, bool) {
	if h.next == NilPtr {
		return NilPtr, false
	}

	successor := h.next
	next := a.readHeader(successor)

	if next.tag != TagFree || h.size+next.size < want {
		return NilPtr, false
	}

	combined := h.size + next.size
	remainder := combined - want

	if remainder >= minFragment {
		tail := p + Ptr(want)
		tailHeader := blockHeader{size: remainder, next: next.next, prev: p, tag: TagFree}
		a.writeHeader(tail, tailHeader)

		if next.next != NilPtr {
			nn := a.readHeader(next.next)
			nn.prev = tail
			a.writeHeader(next.next, nn)
		}

		h.size = want
		h.next = tail
	} else {
		h.size = combined
		h.next = next.next

		if next.next != NilPtr {
			nn := a.readHeader(next.next)
			nn.prev = p
			a.writeHeader(next.next, nn)
		}
	}

	if successor != h.next {
		a.poison(successor)
	}

	h.tag = tag
	a.writeHeader(p, h)

	if a.current == successor {
		a.current = h.next
	}

	return p, true
}

func (a *Allocator) reallocCopy(p Ptr, h blockHeader, n int, tag Tag) (Ptr, error) {
	np, err := a.allocLocked(n, tag)
	if err != nil {
		return NilPtr, err
	}

	oldPayload := h.size - headerSize - trailerSize
	copyLen := oldPayload
	newPayload := uint64(n)

	if newPayload < copyLen {
		copyLen = newPayload
	}

	copy(a.heap[int64(np)+headerSize:int64(np)+headerSize+int64(copyLen)], a.heap[int64(p)+headerSize:int64(p)+headerSize+int64(copyLen)])

	if err := a.freeLocked(p); err != nil {
		return NilPtr, err
	}

	return np, nil
}

// Bytes returns the payload slice backing the allocation at p. The
// slice may be larger than originally requested due to alignment
// rounding; callers should track their own logical length if it
// matters.
func (a *Allocator) Bytes(p Ptr) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	h := a.readHeader(p)

	return a.heap[int64(p)+headerSize : int64(p)+int64(h.size)-trailerSize]
}
