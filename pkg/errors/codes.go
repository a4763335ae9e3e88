package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeStorageError       ErrorCode = "COMMON_014"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_015"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Aliases used by generic layers (routers, repositories, middleware).
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")

	CodeDBConnectionError = ErrCodeDatabaseError
	CodeDatabaseError     = ErrCodeDatabaseError
	CodeDBQueryError      = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeStorageError      = ErrCodeStorageError
	CodeMessageQueueError = ErrCodeMessageQueueError
)

// Molecule Module Error Codes
const (
	ErrCodeMoleculeParseFailed     ErrorCode = "MOL_001"
	ErrCodeMoleculeInvalidFormat   ErrorCode = "MOL_002"
	ErrCodeMoleculeNoHeavyAtoms    ErrorCode = "MOL_003"
	ErrCodeMoleculeUnsupportedAtom ErrorCode = "MOL_004"
	ErrCodeMoleculeTreeInvalid     ErrorCode = "MOL_005"
	ErrCodeMoleculeFiltered        ErrorCode = "MOL_006"
	ErrCodeMoleculeNotFound        ErrorCode = "MOL_007"
)

// Docking Module Error Codes
const (
	ErrCodeBoxInvalid        ErrorCode = "DOCK_001"
	ErrCodeGridAlloc         ErrorCode = "DOCK_002"
	ErrCodeScoringUnprepared ErrorCode = "DOCK_003"
	ErrCodeDockingFailed     ErrorCode = "DOCK_004"
	ErrCodeReceptorParse     ErrorCode = "DOCK_005"
)

// Job Module Error Codes
const (
	ErrCodeJobNotFound         ErrorCode = "JOB_001"
	ErrCodeJobAlreadyExists    ErrorCode = "JOB_002"
	ErrCodeJobStateInvalid     ErrorCode = "JOB_003"
	ErrCodeJobSliceUnavailable ErrorCode = "JOB_004"
	ErrCodeJobLibraryMissing   ErrorCode = "JOB_005"
	ErrCodeJobResultWrite      ErrorCode = "JOB_006"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeMoleculeParseFailed:     http.StatusBadRequest,
	ErrCodeMoleculeInvalidFormat:   http.StatusBadRequest,
	ErrCodeMoleculeNoHeavyAtoms:    http.StatusBadRequest,
	ErrCodeMoleculeUnsupportedAtom: http.StatusBadRequest,
	ErrCodeMoleculeTreeInvalid:     http.StatusBadRequest,
	ErrCodeMoleculeFiltered:        http.StatusUnprocessableEntity,
	ErrCodeMoleculeNotFound:        http.StatusNotFound,

	ErrCodeBoxInvalid:        http.StatusBadRequest,
	ErrCodeGridAlloc:         http.StatusInsufficientStorage,
	ErrCodeScoringUnprepared: http.StatusInternalServerError,
	ErrCodeDockingFailed:     http.StatusInternalServerError,
	ErrCodeReceptorParse:     http.StatusBadRequest,

	ErrCodeJobNotFound:         http.StatusNotFound,
	ErrCodeJobAlreadyExists:    http.StatusConflict,
	ErrCodeJobStateInvalid:     http.StatusConflict,
	ErrCodeJobSliceUnavailable: http.StatusConflict,
	ErrCodeJobLibraryMissing:   http.StatusNotFound,
	ErrCodeJobResultWrite:      http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessageQueueError:  "message queue error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeMoleculeParseFailed:     "failed to parse molecule",
	ErrCodeMoleculeInvalidFormat:   "unsupported molecule format",
	ErrCodeMoleculeNoHeavyAtoms:    "molecule has no heavy atoms",
	ErrCodeMoleculeUnsupportedAtom: "unsupported atom type",
	ErrCodeMoleculeTreeInvalid:     "invalid torsion tree",
	ErrCodeMoleculeFiltered:        "molecule rejected by property filter",
	ErrCodeMoleculeNotFound:        "molecule not found",

	ErrCodeBoxInvalid:        "invalid search box",
	ErrCodeGridAlloc:         "grid map memory bound exceeded",
	ErrCodeScoringUnprepared: "scoring function not precomputed",
	ErrCodeDockingFailed:     "docking run failed",
	ErrCodeReceptorParse:     "failed to parse receptor",

	ErrCodeJobNotFound:         "job not found",
	ErrCodeJobAlreadyExists:    "job already exists",
	ErrCodeJobStateInvalid:     "invalid job state transition",
	ErrCodeJobSliceUnavailable: "no job slice available",
	ErrCodeJobLibraryMissing:   "ligand library not found",
	ErrCodeJobResultWrite:      "failed to persist job results",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
