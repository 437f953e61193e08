package cli

// Exit codes for httpcall
const (
	// ExitSuccess indicates a response was received, whatever its status
	ExitSuccess = 0

	// ExitCallFailed indicates the call produced no response
	ExitCallFailed = 1

	// ExitUsage indicates invalid flags, arguments or configuration
	ExitUsage = 2
)
