package rdb

// Opcodes that appear in the top-level record stream, ahead of a keyed
// value or acting as pure context-setting directives.
const (
	opModuleAux   = 0xF7
	opIdle        = 0xF8
	opFreq        = 0xF9
	opAux         = 0xFA
	opResizeDB    = 0xFB
	opExpireMs    = 0xFC
	opExpireSec   = 0xFD
	opSelectDB    = 0xFE
	opEOF         = 0xFF
	opFunction2   = 0xF5
	opFunctionPre = 0xF6
)

// Value-type codes: what kind of object follows a (key, ...) pair.
const (
	typeString           = 0
	typeList             = 1
	typeSet              = 2
	typeZSet             = 3
	typeHash             = 4
	typeZSet2            = 5
	typeModule           = 6
	typeModule2          = 7
	typeHashZipmap       = 9
	typeListZiplist      = 10
	typeSetIntset        = 11
	typeZSetZiplist      = 12
	typeHashZiplist      = 13
	typeListQuicklist    = 14
	typeHashListpack     = 16
	typeListQuicklist2   = 17
	typeZSetListpack     = 18
	typeSetListpack      = 19
	typeStreamListpacks  = 20 // covers v1/v2/v3 payload shapes, gated on rdbVersion
)

// Length-encoding selectors: the top two bits of the first length byte.
const (
	lenEnc6Bit  = 0
	lenEnc14Bit = 1
	lenEnc32or64 = 2
	lenEncSpecial = 3
)

// Special-encoding values (only meaningful when lenEncSpecial is selected).
const (
	encInt8  = 0
	encInt16 = 1
	encInt32 = 2
	encLZF   = 3
)

// Ziplist entry encoding bytes (string and integer forms).
const (
	zlStr06B = 0x00
	zlStr14B = 0x01
	zlStr32B = 0x80
	zlInt16B = 0xc0
	zlInt32B = 0xd0
	zlInt64B = 0xe0
	zlInt24B = 0xf0
	zlInt8B  = 0xfe
	zlInt4B  = 0xf1 // base; actual nibble value is (byte & 0x0f) - 1, range 0..12
)

const rdbListQuicklistPlain = 1 // quicklist-v2 container type: plain node (single large string, no ziplist/listpack wrapping)
