package pmw3360

import _ "embed"

// sromImage is the vendor SROM firmware, revision 0x04, baked into the
// binary so the driver has no runtime file dependency. The sensor runs
// a degraded fixed-function mode until this is uploaded after every
// power cycle.
//
//go:embed srom_0x04.bin
var sromImage []byte

// SROMRevision is the identifier RegSROMID must report after a
// successful upload of sromImage.
const SROMRevision = 0x04
