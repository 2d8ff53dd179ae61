package mem

import "fmt"

// AccessKind tells what a request does to the block it touches.
type AccessKind int

// Valid AccessKind values.
const (
	AccessKindRead AccessKind = iota
	AccessKindWrite
	AccessKindWriteBack
)

func (k AccessKind) String() string {
	switch k {
	case AccessKindRead:
		return "read"
	case AccessKindWrite:
		return "write"
	case AccessKindWriteBack:
		return "write-back"
	default:
		return fmt.Sprintf("AccessKind(%d)", int(k))
	}
}

// A Request is a single memory access that travels down the cache
// hierarchy.
//
// Addr is rewritten in place. The MMU turns the virtual address into a
// physical one and each cache level forwards the block-aligned physical
// address to the level below. VAddr always keeps the virtual address of the
// access so that the line content can be read from the backing memory.
type Request struct {
	CoreID       int
	EIP          uint64
	Addr         uint64
	VAddr        uint64
	Size         uint64
	Kind         AccessKind
	InstrLoading bool
	Data         []byte
}

// IsWrite returns true if the request marks the block it touches dirty.
func (r *Request) IsWrite() bool {
	return r.Kind == AccessKindWrite || r.Kind == AccessKindWriteBack
}

// Clone returns a copy of the request that does not share the data buffer.
func (r *Request) Clone() *Request {
	c := *r
	if r.Data != nil {
		c.Data = append([]byte(nil), r.Data...)
	}

	return &c
}

func (r *Request) String() string {
	return fmt.Sprintf("core %d eip 0x%x %s vaddr 0x%x addr 0x%x size %d",
		r.CoreID, r.EIP, r.Kind, r.VAddr, r.Addr, r.Size)
}

// RequestBuilder can build requests.
type RequestBuilder struct {
	coreID       int
	eip          uint64
	address      uint64
	byteSize     uint64
	kind         AccessKind
	instrLoading bool
	data         []byte
}

// WithCoreID sets the core that issues the request.
func (b RequestBuilder) WithCoreID(coreID int) RequestBuilder {
	b.coreID = coreID
	return b
}

// WithEIP sets the instruction pointer of the instruction that issues the
// request.
func (b RequestBuilder) WithEIP(eip uint64) RequestBuilder {
	b.eip = eip
	return b
}

// WithAddress sets the virtual address of the request to build.
func (b RequestBuilder) WithAddress(address uint64) RequestBuilder {
	b.address = address
	return b
}

// WithByteSize sets the byte size of the request to build. Zero means that
// the size is unknown.
func (b RequestBuilder) WithByteSize(byteSize uint64) RequestBuilder {
	b.byteSize = byteSize
	return b
}

// WithKind sets the access kind of the request to build.
func (b RequestBuilder) WithKind(kind AccessKind) RequestBuilder {
	b.kind = kind
	return b
}

// AsInstrLoading marks the request as an instruction fetch.
func (b RequestBuilder) AsInstrLoading() RequestBuilder {
	b.instrLoading = true
	return b
}

// WithData sets the store payload of a write request. The byte size is set to
// the length of the data.
func (b RequestBuilder) WithData(data []byte) RequestBuilder {
	b.data = data
	b.byteSize = uint64(len(data))

	return b
}

// Build creates a new Request.
func (b RequestBuilder) Build() *Request {
	return &Request{
		CoreID:       b.coreID,
		EIP:          b.eip,
		Addr:         b.address,
		VAddr:        b.address,
		Size:         b.byteSize,
		Kind:         b.kind,
		InstrLoading: b.instrLoading,
		Data:         b.data,
	}
}
