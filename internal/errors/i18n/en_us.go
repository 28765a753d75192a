package i18n

// Error codes must match the codes defined in internal/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodePlatformAlreadyExists     = "PLATFORM_ALREADY_EXISTS"
	CodePlatformNotFound          = "PLATFORM_NOT_FOUND"
	CodePlatformKeyDuplicate      = "PLATFORM_KEY_DUPLICATE"
	CodePlatformVersionConflict   = "PLATFORM_VERSION_CONFLICT"
	CodePlatformNotDeleted        = "PLATFORM_NOT_DELETED"
	CodePlatformModulePathUnknown = "PLATFORM_MODULE_PATH_UNKNOWN"
	CodePropertyValidationFailed  = "PROPERTY_VALIDATION_FAILED"
	CodePropertyRequiredMissing   = "PROPERTY_REQUIRED_MISSING"
	CodePropertyReferenceCycle    = "PROPERTY_REFERENCE_CYCLE"
	CodeModuleNotFound            = "MODULE_NOT_FOUND"
	CodeApplicationNotFound       = "APPLICATION_NOT_FOUND"
	CodeInvalidFilter             = "INVALID_FILTER"
	CodeInvalidPageToken          = "INVALID_PAGE_TOKEN"
	CodeNotFound                  = "NOT_FOUND"
	CodeEventTypeUnknown          = "EVENT_TYPE_UNKNOWN"
	CodeEventSequenceGap          = "EVENT_SEQUENCE_GAP"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		// Platform lifecycle errors
		CodePlatformAlreadyExists:     "Platform already exists",
		CodePlatformNotFound:          "Platform was not found",
		CodePlatformKeyDuplicate:      "Platform {{.PlatformName}} already exists in application {{.ApplicationName}}",
		CodePlatformVersionConflict:   "Platform was modified concurrently: expected version {{.Expected}}, found {{.Actual}}",
		CodePlatformNotDeleted:        "Platform is not deleted and cannot be restored",
		CodePlatformModulePathUnknown: "No deployed module matches properties path {{.PropertiesPath}}",

		// Property errors
		CodePropertyValidationFailed: "Property validation failed",
		CodePropertyRequiredMissing:  "Required property {{.Property}} has no value",
		CodePropertyReferenceCycle:   "Property {{.Property}} participates in a reference cycle",

		// Catalog errors
		CodeModuleNotFound: "Module {{.Module}} was not found in the catalog",

		// Query errors
		CodeApplicationNotFound: "Application {{.ApplicationName}} was not found",
		CodeInvalidFilter:       "The search filter expression is invalid",
		CodeInvalidPageToken:    "The page token is invalid or expired",

		// Storage errors
		CodeNotFound:         "The requested resource was not found",
		CodeEventTypeUnknown: "The event journal contains an unknown event type",
		CodeEventSequenceGap: "The event journal has a sequence gap",
	},
}
