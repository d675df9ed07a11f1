package recovery

// ErrorKind tags the class of failure a recovery attempt was raised for.
type ErrorKind string

const (
	ErrorKindTimeout            ErrorKind = "timeout"
	ErrorKindResourceExhaustion ErrorKind = "resource_exhaustion"
	ErrorKindCommunication      ErrorKind = "communication"
	ErrorKindStateCorruption    ErrorKind = "state_corruption"
	ErrorKindUnknown            ErrorKind = "unknown"
)
