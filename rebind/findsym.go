package rebind

import (
	"fmt"
	"reflect"
	"runtime"
	"unsafe"
)

type funcInfo struct {
	*_func
	datap *moduledata
}

type _func struct {
	//sys.NotInHeap // Only in static data

	entryOff uint32 // start pc, as offset from moduledata.text/pcHeader.textStart
	nameOff  int32  // function name, as index into moduledata.funcnametab.

	args        int32  // in/out args size
	deferreturn uint32 // offset of start of a deferreturn call instruction from entry, if any.

	pcsp      uint32
	pcfile    uint32
	pcln      uint32
	npcdata   uint32
	cuOffset  uint32 // runtime.cutab offset of this function's CU
	startLine int32  // line number of start of function (func keyword/TEXT directive)
	funcID    uint8  // set for certain special runtime functions
	flag      uint8
	_         [1]byte // pad
	nfuncdata uint8   // must be last, must end on a uint32-aligned boundary
}

// moduledata records information about the layout of an executable image.
// It must stay in sync with the runtime's definition; only the leading
// fields are declared because nothing past gofunc is needed here.
type moduledata struct {
	pcHeader     *pcHeader
	funcnametab  []byte
	cutab        []uint32
	filetab      []byte
	pctab        []byte
	pclntable    []byte
	ftab         []functab
	findfunctab  uintptr
	minpc, maxpc uintptr

	text, etext           uintptr
	noptrdata, enoptrdata uintptr
	data, edata           uintptr
	bss, ebss             uintptr
	noptrbss, enoptrbss   uintptr
	covctrs, ecovctrs     uintptr
	end, gcdata, gcbss    uintptr
	types, etypes         uintptr
	rodata                uintptr
	gofunc                uintptr

	// Struct continues, omitting unused fields.
}

// pcHeader holds data used by the pclntab lookups.
type pcHeader struct {
	magic          uint32
	pad1, pad2     uint8
	minLC          uint8
	ptrSize        uint8
	nfunc          int
	nfiles         uint
	textStart      uintptr
	funcnameOffset uintptr
	cuOffset       uintptr
	filetabOffset  uintptr
	pctabOffset    uintptr
	pclnOffset     uintptr
}

type functab struct {
	entryoff uint32 // relative to moduledata.text
	funcoff  uint32
}

//go:linkname findfunc runtime.findfunc
func findfunc(pc uintptr) funcInfo

// mainModule returns the moduledata of the image this package was linked
// into, by looking up a pc that is certainly in it. Symbols in images
// loaded later (plugins) are not visible through it.
func mainModule() *moduledata {
	return findfunc(reflect.ValueOf(Restore).Pointer()).datap
}

// findSymbol locates the named function in the loaded image and returns
// its machine code. The slice aliases live text memory.
func findSymbol(symbol string) ([]byte, error) {
	md := mainModule()
	if md == nil {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	for _, ft := range md.ftab {
		entry := md.text + uintptr(ft.entryoff)
		if entry < md.minpc || entry >= md.maxpc {
			// The final ftab entry is an end-of-text marker, not a
			// function.
			continue
		}

		fn := runtime.FuncForPC(entry)
		if fn == nil || fn.Entry() != entry || fn.Name() != symbol {
			continue
		}
		return funcCode(md, entry), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
}

// funcCode returns the instructions of the function starting at entry.
// The pclntab does not record lengths, so the length is the distance to
// whichever function starts next.
func funcCode(md *moduledata, entry uintptr) []byte {
	funcOffset := uint32(entry - md.text)
	length := uint32(md.etext - entry)

	for _, ft := range md.ftab {
		if ft.entryoff <= funcOffset {
			continue
		}
		if d := ft.entryoff - funcOffset; d < length {
			length = d
		}
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(entry)), int(length))
}
