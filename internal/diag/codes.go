package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Driver I/O failures.
	IOLoadFileError    Code = 1001
	IOModuleCacheError Code = 1002

	// Semantic errors reported by the scope builder.
	SemaInfo                    Code = 3000
	SemaError                   Code = 3001
	SemaRedefinition            Code = 3002
	SemaUnresolvedSymbol        Code = 3003
	SemaUnresolvedModule        Code = 3004
	SemaDummyArgNotDefined      Code = 3005
	SemaImplicitTypingDisabled  Code = 3006
	SemaImplicitNoneConflict    Code = 3007
	SemaNoImplicitType          Code = 3008
	SemaReturnTypeTwice         Code = 3009
	SemaKindTwice               Code = 3010
	SemaShadowedImport          Code = 3011
	SemaUnknownParentType       Code = 3012
	SemaPassArgMissing          Code = 3013
	SemaPassArgTypeMismatch     Code = 3014
	SemaPassAndNopass           Code = 3015
	SemaBoundProcMissing        Code = 3016
	SemaInterfaceProcMissing    Code = 3017
	SemaTemplateUnresolved      Code = 3018
	SemaTemplateArity           Code = 3019
	SemaRequirementUnresolved   Code = 3020
	SemaInstantiateBadArgument  Code = 3021
	SemaEnumNonIntegerValue     Code = 3022
	SemaUseSymbolNotFound       Code = 3023
	SemaAlternateReturn         Code = 3024
	SemaCommonBlockInconsistent Code = 3025

	// Structural violations reported by the IR verifier.
	VerifyInfo                Code = 4000
	VerifyError               Code = 4001
	VerifyScopeParent         Code = 4002
	VerifyScopeCounter        Code = 4003
	VerifyScopeOwner          Code = 4004
	VerifyDanglingReference   Code = 4005
	VerifyDependencyMissing   Code = 4006
	VerifyDependencyExtra     Code = 4007
	VerifyDependencyDuplicate Code = 4008
	VerifyTypeShape           Code = 4009
	VerifyStringLength        Code = 4010
	VerifyExternalAlias       Code = 4011
	VerifyEnumValues          Code = 4012
	VerifyStructAlignment     Code = 4013
	VerifyCallTarget          Code = 4014
	VerifyRequiredArgument    Code = 4015
	VerifyConstReassigned     Code = 4016
	VerifyIntentInAssigned    Code = 4017
)

func (c Code) String() string {
	switch {
	case c >= 4000 && c < 5000:
		return fmt.Sprintf("VFY%04d", uint16(c))
	case c >= 3000 && c < 4000:
		return fmt.Sprintf("SEM%04d", uint16(c))
	default:
		return fmt.Sprintf("FER%04d", uint16(c))
	}
}
