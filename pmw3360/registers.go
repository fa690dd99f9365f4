package pmw3360

import "time"

// PMW3360 register addresses
// Per the PMW3360DM-T2QU datasheet register map. These are fixed silicon
// constants; a mismatch here is a correctness bug, not configuration.
const (
	RegProductID    = 0x00 // Product identifier, reads 0x42
	RegRevisionID   = 0x01 // Silicon revision
	RegMotion       = 0x02 // Motion status flags
	RegDeltaXL      = 0x03 // X displacement, low byte
	RegDeltaXH      = 0x04 // X displacement, high byte
	RegDeltaYL      = 0x05 // Y displacement, low byte
	RegDeltaYH      = 0x06 // Y displacement, high byte
	RegSQUAL        = 0x07 // Surface quality (feature count / 8)
	RegRawDataSum   = 0x08 // Sum of raw pixel values
	RegMaxRawData   = 0x09 // Maximum raw pixel value
	RegMinRawData   = 0x0A // Minimum raw pixel value
	RegShutterLower = 0x0B // Shutter time, low byte
	RegShutterUpper = 0x0C // Shutter time, high byte
	RegConfig1      = 0x0F // Resolution, 100 CPI per step
	RegConfig2      = 0x10 // Rest mode enable and misc control
	RegAngleTune    = 0x11 // Rotation compensation, signed degrees
	RegSROMEnable   = 0x13 // SROM download control
	RegObservation  = 0x24 // SROM running status
	RegSROMID       = 0x2A // SROM firmware identifier
	RegPowerUpReset = 0x3A // Write 0x5A to reset
	RegShutdown     = 0x3B // Write 0xB6 to shut down
	RegMotionBurst  = 0x50 // Burst-read entry point
	RegSROMBurst    = 0x62 // SROM download burst port
	RegLiftConfig   = 0x63 // Lift-off detection height
)

// Command and status values
const (
	// ProductID is the value RegProductID reads on PMW3360 silicon.
	ProductID = 0x42

	// powerUpResetCmd written to RegPowerUpReset forces a full reset.
	powerUpResetCmd = 0x5A

	// sromInit / sromStart are the two-phase SROM download enable.
	sromInit  = 0x1D
	sromStart = 0x18

	// config2RestEn is the rest-mode enable bit in RegConfig2. Cleared
	// for the whole SROM download and left cleared in wired operation.
	config2RestEn = 0x20

	// motionMOT is the new-motion flag in the Motion register.
	motionMOT = 0x80
)

// Bus timing
// Minimum settle times from the datasheet's SPI timing table. Too little
// delay does not fail loudly; it silently corrupts the transfer, so these
// are floors, never tuned down.
const (
	tSRAD      = 160 * time.Microsecond // address to data, normal read
	tSRADMotBr = 35 * time.Microsecond  // address to data, motion burst
	tSRR       = 20 * time.Microsecond  // read to next transaction
	tSWW       = 120 * time.Microsecond // write to next transaction
	tBExit     = 1 * time.Microsecond   // burst exit, NCS high hold
	tSROMByte  = 15 * time.Microsecond  // between SROM download bytes
	tSROMSet   = 10 * time.Millisecond  // after sromInit
	tSROMDone  = 200 * time.Microsecond // after last download byte
	tReset     = 50 * time.Millisecond  // after power-up reset
)

// BurstLen is the size of one motion-burst frame.
const BurstLen = 12

// Motion-burst frame byte offsets.
const (
	burstMotion       = 0
	burstObservation  = 1
	burstDeltaXL      = 2
	burstDeltaXH      = 3
	burstDeltaYL      = 4
	burstDeltaYH      = 5
	burstSQUAL        = 6
	burstRawDataSum   = 7
	burstMaxRawData   = 8
	burstMinRawData   = 9
	burstShutterUpper = 10
	burstShutterLower = 11
)
