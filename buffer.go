package aquamarine

// Buffer, DMABUFAttributes and Attachments are the interfaces the core
// consumes from the buffer/allocator collaborator (spec.md §6, §4.E).
// The core never allocates client-visible pixel storage itself.

// DMABUFAttributes describes the planes backing a DMA-BUF-based buffer,
// as reported by Buffer.DMABUF().
type DMABUFAttributes struct {
	Success  bool
	Planes   int
	FDs      [4]int
	Strides  [4]uint32
	Offsets  [4]uint32
	Width    uint32
	Height   uint32
	Format   uint32
	Modifier uint64
}

// Attachment names the core looks up on a Buffer's Attachments set.
const (
	// AttachmentUnimportable marks a buffer that a prior FB import
	// attempt already failed on, so later commits fail fast (spec.md
	// §4.E, §7).
	AttachmentUnimportable = "aquamarine:unimportable"
)

// Attachments is a small opaque tag set a Buffer carries so the core
// (and other collaborators) can record facts about a buffer without
// owning its lifetime.
type Attachments interface {
	Has(name string) bool
	Add(name string)
}

// Buffer is a client-provided pixel buffer, produced by the allocator
// collaborator's Swapchain. The core only ever reads its DMA-BUF
// attributes and tags it via Attachments; it never writes pixels.
type Buffer interface {
	DMABUF() DMABUFAttributes
	Attachments() Attachments
}
