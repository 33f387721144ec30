// Package snapshot defines the plain-data state of every emulated unit and
// its versioned binary encoding.
package snapshot

// Expected sizes of the bulk memories.
const (
	RAMSize     = 0x800
	VRAMSize    = 0x800
	OAMSize     = 0x100
	PaletteSize = 0x20
	NumSprites  = 8
)

// Last valid PPU coordinates.
const (
	LastScanline = 261
	LastCycle    = 340
)

type NES struct {
	CPU    CPU
	RAM    []byte
	DMA    DMA
	PPU    PPU
	APU    APU
	Mapper Mapper
	Input  Input
}

type CPU struct {
	PC uint16
	SP uint8
	P  uint8
	A  uint8
	X  uint8
	Y  uint8

	Cycles  int64
	OpenBus uint8

	IRQFlag    uint8
	RunIRQ     bool
	PrevRunIRQ bool

	NMIFlag     bool
	PrevNMIFlag bool
	NeedNMI     bool
	PrevNeedNMI bool
}

type DMA struct {
	OAMPending bool
	OAMPage    uint8
	DMCPending bool
}

type PPU struct {
	CTRL    uint8
	MASK    uint8
	STATUS  uint8
	OAMAddr uint8
	OpenBus uint8
	DataBuf uint8

	V      uint16
	T      uint16
	FineX  uint8
	Toggle bool

	Scanline int
	Cycle    int
	Frame    uint64
	OddFrame bool

	NMIDelay    int
	NMIOutput   bool
	SuppressVBL bool

	Bg      BgRegs
	Sprites Sprites

	VRAM    []byte
	OAM     []byte
	Palette []byte
}

type BgRegs struct {
	NT        uint8
	AT        uint8
	TileLo    uint8
	TileHi    uint8
	ShiftLo   uint16
	ShiftHi   uint16
	ATShiftLo uint16
	ATShiftHi uint16
}

// Sprites holds the sprites selected for the scanline being drawn.
type Sprites struct {
	Count      int
	HasSprite0 bool
	X          [NumSprites]uint8
	Attr       [NumSprites]uint8
	PatLo      [NumSprites]uint8
	PatHi      [NumSprites]uint8
}

type APU struct {
	Square1      Square
	Square2      Square
	Triangle     Triangle
	Noise        Noise
	DMC          DMC
	FrameCounter FrameCounter
	Cycle        uint64
}

type Envelope struct {
	ConstVolume bool
	Volume      uint8
	Start       bool
	Divider     int8
	Counter     uint8
}

type LengthCounter struct {
	Enabled bool
	Halt    bool
	Counter uint8
}

type Square struct {
	Envelope Envelope
	Length   LengthCounter

	Timer      uint16
	Period     uint16
	RealPeriod uint16
	Duty       uint8
	DutyPos    uint8

	SweepEnabled bool
	SweepNegate  bool
	SweepReload  bool
	SweepPeriod  uint8
	SweepShift   uint8
	SweepDivider uint8
}

type Triangle struct {
	Length LengthCounter

	Timer  uint16
	Period uint16
	Pos    uint8

	LinearCounter uint8
	LinearReload  uint8
	LinearFlag    bool
	LinearCtrl    bool
}

type Noise struct {
	Envelope Envelope
	Length   LengthCounter

	Timer    uint16
	Period   uint16
	ShiftReg uint16
	Mode     bool
}

type DMC struct {
	Timer      uint16
	Period     uint16
	IRQEnabled bool
	Loop       bool
	Level      uint8

	SampleAddr  uint16
	SampleLen   uint16
	CurrentAddr uint16
	Remaining   uint16

	Buffer      uint8
	BufferEmpty bool
	ShiftReg    uint8
	BitsLeft    uint8
	Silence     bool
	NeedDMA     bool
}

type FrameCounter struct {
	Cycle      int32
	Step       uint8
	Mode       uint8
	InhibitIRQ bool
	NewValue   int16
	WriteDelay int8
	BlockTick  uint8
}

type Mapper struct {
	ID     uint16
	Regs   []byte // mapper specific registers
	PRGRAM []byte
	CHRRAM []byte
}

type Input struct {
	Strobe  bool
	Buttons [2]uint8
	Shift   [2]uint8
}
