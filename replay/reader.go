// Package replay feeds recorded memory access traces into a cache hierarchy.
//
// A trace is a text file with one event per line:
//
//	<core> <eip> <R|W|I> <addr> <size> [hex data]
//
// I is an instruction fetch.
// Numbers are decimal or 0x-prefixed hexadecimal. The lines roi_begin and
// roi_end mark the region of interest. Blank lines and lines starting with #
// are ignored.
package replay

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Shihao-Song/Pin-Tools/mem/mem"
)

// EventKind tells what an event is.
type EventKind int

// Kinds of events.
const (
	EventAccess EventKind = iota
	EventROIBegin
	EventROIEnd
)

// An Event is one line of a trace.
type Event struct {
	Kind EventKind
	Line int
	Req  *mem.Request
}

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Errors wrapped by ParseError.
var (
	ErrFieldCount = errors.New("wrong number of fields")
	ErrBadKind    = errors.New("access kind must be R, W or I")
	ErrBadNumber  = errors.New("invalid number")
	ErrBadData    = errors.New("invalid data")
	ErrBadSize    = errors.New("access size out of range")
)

// A Reader reads events from a trace.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Reader{scanner: s}
}

// Next returns the next event. It returns io.EOF after the last event. A
// malformed line returns a *ParseError and the reader can continue after it.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		evt, err := parseLine(text)
		if err != nil {
			return Event{}, &ParseError{Line: r.line, Text: text, Err: err}
		}

		evt.Line = r.line

		return evt, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}

	return Event{}, io.EOF
}

func parseLine(text string) (Event, error) {
	switch text {
	case "roi_begin":
		return Event{Kind: EventROIBegin}, nil
	case "roi_end":
		return Event{Kind: EventROIEnd}, nil
	}

	fields := strings.Fields(text)
	if len(fields) != 5 && len(fields) != 6 {
		return Event{}, ErrFieldCount
	}

	core, err := strconv.ParseUint(fields[0], 0, 16)
	if err != nil {
		return Event{}, fmt.Errorf("%w: core %s", ErrBadNumber, fields[0])
	}

	var kind mem.AccessKind

	instr := false

	switch strings.ToUpper(fields[2]) {
	case "R":
		kind = mem.AccessKindRead
	case "W":
		kind = mem.AccessKindWrite
	case "I":
		kind = mem.AccessKindRead
		instr = true
	default:
		return Event{}, ErrBadKind
	}

	nums := make([]uint64, 3)
	for i, f := range []string{fields[1], fields[3], fields[4]} {
		nums[i], err = strconv.ParseUint(f, 0, 64)
		if err != nil {
			return Event{}, fmt.Errorf("%w: %s", ErrBadNumber, f)
		}
	}

	if nums[2] > mem.MaxAccessSize {
		return Event{}, fmt.Errorf("%w: %d bytes, at most %d",
			ErrBadSize, nums[2], mem.MaxAccessSize)
	}

	b := mem.RequestBuilder{}.
		WithCoreID(int(core)).
		WithEIP(nums[0]).
		WithAddress(nums[1]).
		WithByteSize(nums[2]).
		WithKind(kind)

	if instr {
		b = b.AsInstrLoading()
	}

	if len(fields) == 6 {
		data, err := parseData(fields[5], nums[2], kind)
		if err != nil {
			return Event{}, err
		}

		b = b.WithData(data)
	}

	return Event{Kind: EventAccess, Req: b.Build()}, nil
}

func parseData(field string, size uint64, kind mem.AccessKind) ([]byte, error) {
	if kind != mem.AccessKindWrite {
		return nil, fmt.Errorf("%w: reads do not carry data", ErrBadData)
	}

	data, err := hex.DecodeString(strings.TrimPrefix(field, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadData, err)
	}

	if uint64(len(data)) != size {
		return nil, fmt.Errorf("%w: %d bytes for a %d-byte store",
			ErrBadData, len(data), size)
	}

	return data, nil
}
