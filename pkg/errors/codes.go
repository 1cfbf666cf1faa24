package errors

type Code string

const (
	CodeUnknown              Code = "UNKNOWN"
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeNotFound             Code = "NOT_FOUND"
	CodeConflict             Code = "CONFLICT"
	CodePermissionDenied     Code = "PERMISSION_DENIED"
	CodeUnauthenticated      Code = "UNAUTHENTICATED"
	CodeTransformationFailed Code = "TRANSFORMATION_FAILED"
	CodeUnavailable          Code = "UNAVAILABLE"
	CodeInternal             Code = "INTERNAL"
)
