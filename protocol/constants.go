package protocol

import "time"

// Wire bytes shared by every command and reply.
const (
	// Escape interrupts any in-progress operation on the module (0x1B)
	Escape = 0x1B

	// CarriageReturn terminates every command line
	CarriageReturn = '\r'

	// Space marks a successful reply with data following
	Space = ' '

	// ErrorMarker starts an error reply: E<hex><prompt>
	ErrorMarker = 'E'

	// FolderMarker starts a folder entry in a directory listing
	FolderMarker = 'D'

	// DefaultPrompt is the prompt character before negotiation (0x3E)
	DefaultPrompt = '>'

	// RenameSeparator separates the old and new path of a rename
	RenameSeparator = '|'

	// PathSeparator separates folders in a remote path
	PathSeparator = '/'
)

// Command characters. File commands are sent after the module prefix.
const (
	CmdVersion     = 'V'
	CmdFreeHandle  = 'F'
	CmdOpen        = 'O'
	CmdClose       = 'C'
	CmdFileInfo    = 'I'
	CmdCardInfo    = 'Q'
	CmdStatus      = 'Z'
	CmdList        = 'L'
	CmdRemove      = 'E'
	CmdRename      = 'N'
	CmdRead        = 'R'
	CmdWrite       = 'W'
	CmdSeek        = 'J'
	CmdSetting     = 'S'
	CmdTime        = 'T'
	CmdLine        = 'L' // suffix for RL / WL
	CmdSeekEnd     = 'E' // suffix for J<h>E
	CmdListCount   = "LC"
	CmdListOpenDir = "LS"
	CmdListNext    = "LI"
	CmdListEntry   = "LE"
)

// PlayerPrefix is prepended to file commands on player modules.
const PlayerPrefix = "FC"

// PlayerSettingPrefix follows the setting command on player modules (S T <key>).
const PlayerSettingPrefix = 'T'

// Setting keys used during negotiation.
const (
	// SettingWriteTimeout selects the legacy write time-out (1 = 10 ms)
	SettingWriteTimeout = '1'

	// SettingListingStyle selects the directory listing format (0 = D/size name)
	SettingListingStyle = 'L'

	// SettingPrompt reports or changes the prompt character
	SettingPrompt = 'P'
)

// Module error codes as reported in E<xx> replies.
const (
	CodeBufferOverrun          = 0x02
	CodeNoFreeFiles            = 0x03
	CodeUnrecognizedCommand    = 0x04
	CodeCardInitializationFail = 0x05
	CodeFormattingError        = 0x06
	CodeEOF                    = 0x07
	CodeCardNotInserted        = 0x08
	CodeResetFail              = 0x09
	CodeCardWriteProtected     = 0x0A
	CodeInvalidHandle          = 0xF6
	CodeOpenPathInvalid        = 0xF5
	CodeFileAlreadyExists      = 0xF4
	CodeDECreationFailure      = 0xF3
	CodeFileDoesNotExist       = 0xF2
	CodeOpenHandleInUse        = 0xF1
	CodeOpenNoFreeHandles      = 0xF0
	CodeFATFailure             = 0xEF
	CodeSeekNotOpen            = 0xEE
	CodeOpenModeInvalid        = 0xED
	CodeReadImproperMode       = 0xEC
	CodeFileNotOpen            = 0xEB
	CodeNoFreeSpace            = 0xEA
	CodeWriteImproperMode      = 0xE9
	CodeWriteFailure           = 0xE8
	CodeNotAFile               = 0xE7
	CodeOpenReadOnlyFile       = 0xE6
	CodeNotADir                = 0xE5
)

// Local codes. These never appear on the wire.
const (
	// CodeNotSupported marks an operation the negotiated dialect lacks
	CodeNotSupported = 0xFE

	// CodeDesync marks an unexpected byte where a status marker was expected
	CodeDesync = 0xFF
)

// Firmware thresholds at which a module speaks the current dialect,
// encoded as major*100+minor.
const (
	StorageCurrentFirmware    = 10201
	IndustrialCurrentFirmware = 11101
)

// Timing constants.
const (
	// PollInterval is the wait between byte-availability checks
	PollInterval = 10 * time.Millisecond

	// SyncTimeout bounds the wait for the prompt after ESC (100 polls)
	SyncTimeout = 100 * PollInterval

	// LineFinishDelay ends a legacy line write by idling past the 10 ms write time-out
	LineFinishDelay = 11 * time.Millisecond
)

// Sizes.
const (
	// MaxHandle is the largest handle encodable as a single digit
	MaxHandle = 9

	// LegacyMaxHandles is the handle count closed one by one on legacy modules
	LegacyMaxHandles = 4

	// LegacyLineLength is the byte count announced by a legacy line write
	LegacyLineLength = 512

	// VersionBetaLength is the byte count after '-' in a beta version ("bxxx ")
	VersionBetaLength = 5

	// VersionSerialMarkerLength is the length of the "SN:" marker
	VersionSerialMarkerLength = 3

	// ClockFields is the number of fields returned by a time query
	ClockFields = 7

	// MaxPathLength bounds a path read from program memory
	MaxPathLength = 256
)
