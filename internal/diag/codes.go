package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Compile-time diagnostics.
	ComInfo              Code = 1000
	ComUnresolvedName    Code = 1001
	ComTypeMismatch      Code = 1002
	ComArityMismatch     Code = 1003
	ComRedeclaration     Code = 1004
	ComInvalidLValue     Code = 1005
	ComMissingReturn     Code = 1006
	ComDuplicateTemplate Code = 1007
	ComBreakOutsideLoop  Code = 1008
	ComNotCallable       Code = 1009
	ComNotCopyable       Code = 1010
	ComConstViolation    Code = 1011
	ComBadOperator       Code = 1012
	ComBadSubscript      Code = 1013
	ComBadPrint          Code = 1014
	ComBadReturnType     Code = 1015
	ComBadCondition      Code = 1016
	ComBadIterable       Code = 1017
	ComUnknownField      Code = 1018
	ComUnknownType       Code = 1019
	ComArenaMisuse       Code = 1020

	// Runtime faults surfaced through the CLI.
	RunInfo         Code = 2000
	RunAssertFailed Code = 2001
	RunOutOfBounds  Code = 2002
	RunBadOpcode    Code = 2003
	RunDivideByZero Code = 2004
	RunBadAddress   Code = 2005
	RunArenaMisuse  Code = 2006
	RunBadBuiltin   Code = 2007
	RunBadHandle    Code = 2008
)

func (c Code) String() string {
	switch {
	case c >= RunInfo:
		return fmt.Sprintf("RUN%04d", uint16(c))
	case c >= ComInfo:
		return fmt.Sprintf("COM%04d", uint16(c))
	default:
		return fmt.Sprintf("DIAG%04d", uint16(c))
	}
}
