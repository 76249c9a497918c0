package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Navigation and Validation Errors (F001-F003)
	// ============================================

	"F001": {
		Category: CategoryNavigation,
		Message:  "Invalid href",
		Detail:   "The navigation target could not be parsed as a relative URL.",
	},
	"F002": {
		Category: CategoryValidation,
		Message:  "Unknown filter",
		Detail:   "The session has no filter bound under this name.",
	},
	"F003": {
		Category: CategoryValidation,
		Message:  "Invalid filter value",
		Detail:   "The value sent for a filter does not decode into the filter's type.",
	},

	// ============================================
	// Protocol Errors (F004-F009)
	// ============================================

	"F004": {
		Category: CategoryProtocol,
		Message:  "Malformed message",
		Detail:   "The websocket frame is not a valid JSON message.",
	},
	"F005": {
		Category: CategoryProtocol,
		Message:  "Unknown message type",
		Detail:   "The websocket message type is not one of input, navigate or flush.",
	},

	// ============================================
	// Config Errors (F010-F019)
	// ============================================

	"F010": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "No filterd.json was found in the given directory.",
	},
	"F011": {
		Category: CategoryConfig,
		Message:  "Invalid config",
		Detail:   "The configuration file could not be parsed.",
	},
	"F012": {
		Category: CategoryConfig,
		Message:  "Unsupported filter type",
		Detail:   "Filter types are string, int, float, bool and list.",
	},
	"F013": {
		Category: CategoryConfig,
		Message:  "Invalid filter declaration",
		Detail:   "Every filter needs a unique, non-empty name.",
	},
	"F014": {
		Category: CategoryConfig,
		Message:  "Invalid navigation mode",
		Detail:   "Navigation mode must be push or replace.",
	},

	// ============================================
	// CLI Errors (F020-F029)
	// ============================================

	"F020": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
}

// Lookup returns the registered template for a code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
