package ak4613

const (
	// --- Register sub-addresses (8-bit registers) ---
	regPowerMgmt1 = 0x00 // RSTN, PMVR
	regPowerMgmt2 = 0x01 // PMDA1..4
	regPowerMgmt3 = 0x02 // PMAD1..3
	regControl1   = 0x03 // DIF2:0, TDM1:0
	regControl2   = 0x04 // DFS1:0, CKS1:0

	// --- POWER MANAGEMENT helpers ---
	pm1PowerUp = 0x03 // RSTN | PMVR
	pm2AllDAC  = 0x3F
	pm3AllADC  = 0x07

	// --- CONTROL1: data interface ---
	difI2S    = 0x03 << 3
	difTDM128 = 0x01<<6 | 0x03<<3
	difTDM256 = 0x02<<6 | 0x03<<3
	difTDM512 = 0x03<<6 | 0x03<<3

	// --- CONTROL2: sampling speed and master clock ratio ---
	ctl2DFSMask = 0x03 << 2
	dfsNormal   = 0x00 << 2
	dfsDouble   = 0x01 << 2
	dfsQuad     = 0x02 << 2
	ctl2CKSMask = 0x03 << 4
	cks128      = 0x00 << 4
	cks256      = 0x01 << 4
	cks512      = 0x02 << 4
)

func (d *Device) readReg(reg byte) (byte, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.Address, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

func (d *Device) writeReg(reg, val byte) error {
	d.w[0] = reg
	d.w[1] = val
	return d.bus.Tx(d.Address, d.w[:2], nil)
}

func (d *Device) updateReg(reg, mask, val byte) error {
	cur, err := d.readReg(reg)
	if err != nil {
		return err
	}
	return d.writeReg(reg, cur&^mask|val&mask)
}
