package authz

// Granted permission strings carried in the verified token payload. Roles
// are flattened into scopes by the token service; this package only ever
// sees scopes.
const (
	ScopeRead              = "record.read"
	ScopeNotify            = "record.notify"
	ScopeDeclare           = "record.declare"
	ScopeValidate          = "record.validate"
	ScopeRegister          = "record.register"
	ScopeCertify           = "record.certify"
	ScopeArchive           = "record.archive"
	ScopeAssign            = "record.assign"
	ScopeUnassignOthers    = "record.unassign-others"
	ScopeCorrectionRequest = "record.correction-request"
	ScopeCorrectionApprove = "record.correction-approve"
	ScopeDuplicates        = "record.duplicates"
	ScopeCustom            = "record.custom"
)
