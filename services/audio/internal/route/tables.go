package route

// Fixed physical windows.
const (
	ssiLanes  = 10
	ssiBase   = 0xEC541000
	ssiStride = 0x40
	ssiTx     = 0x08 // TDR
	ssiRx     = 0x0C // RDR

	busSubLanes  = 4
	busInBase    = 0xEC000000
	busOutBase   = 0xEC004000
	busStride    = 0x400
	busSubStride = 0x100

	srcLanes   = 10
	srcInBase  = 0xEC010000
	srcOutBase = 0xEC014000
	srcStride  = 0x400

	cmdLanes   = 2
	cmdOutBase = 0xEC018000
	cmdStride  = 0x400

	trLanes  = 2
	trBase   = 0xEC030000
	trStride = 0x100
	trTx     = 0x00
	trRx     = 0x80

	cpLanes  = 2
	cpBase   = 0xEC040000
	cpStride = 0x100
	cpTx     = 0x00
	cpRx     = 0x04
)

// Request ids. 0 is reserved and marks an absent line.
var (
	ssiTxRID = [ssiLanes]uint8{0x01, 0x03, 0x05, 0x07, 0x09, 0x0B, 0x0D, 0x0F, 0x11, 0x13}
	ssiRxRID = [ssiLanes]uint8{0x02, 0x04, 0x06, 0x08, 0x0A, 0x0C, 0x0E, 0x10, 0x12, 0x14}

	// Sub-lanes 1..3 exist only on the split-capable lanes 0 and 4.
	busInRID = [ssiLanes][busSubLanes]uint8{
		{0x15, 0x16, 0x17, 0x18},
		{0x19},
		{0x1D},
		{0x21},
		{0x25, 0x26, 0x27, 0x28},
		{0x29},
		{0x2D},
		{0x31},
		{0x35},
		{0x39},
	}
	busOutRID = [ssiLanes][busSubLanes]uint8{
		{0x3D, 0x3E, 0x3F, 0x40},
		{0x41},
		{0x45},
		{0x49},
		{0x4D, 0x4E, 0x4F, 0x50},
		{0x51},
		{0x55},
		{0x59},
		{0x5D},
		{0x61},
	}

	srcInRID  = [srcLanes]uint8{0x65, 0x66, 0x67, 0x68, 0x69, 0x6A, 0x6B, 0x6C, 0x6D, 0x6E}
	srcOutRID = [srcLanes]uint8{0x6F, 0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78}

	// Command lanes only ever feed a serial lane; they have no input line.
	cmdOutRID = [cmdLanes]uint8{0x79, 0x7A}

	trTxRID = [trLanes]uint8{0x7B, 0x7C}
	trRxRID = [trLanes]uint8{0x7D, 0x7E}
	cpTxRID = [cpLanes]uint8{0x7F, 0x80}
	cpRxRID = [cpLanes]uint8{0x81, 0x82}
)
