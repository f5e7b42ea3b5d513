// Package errors provides structured error handling for dirwatch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Path and IO errors
//   - 3XX: Subscription errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates path and file I/O errors.
	CategoryIO Category = "IO"
	// CategorySubscription indicates notification backend errors.
	CategorySubscription Category = "SUBSCRIPTION"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Path and IO errors (200-299)
	ErrCodePathNotFound   = "ERR_201_PATH_NOT_FOUND"
	ErrCodeNotADirectory  = "ERR_202_NOT_A_DIRECTORY"
	ErrCodePathPermission = "ERR_203_PATH_PERMISSION"
	ErrCodeLockHeld       = "ERR_204_LOCK_HELD"

	// Subscription errors (300-399)
	ErrCodeSubscription = "ERR_301_SUBSCRIPTION_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from the code's numeric range.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategorySubscription
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}
