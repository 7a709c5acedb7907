package constants

import "time"

// Device types
const (
	ADB   = "adb"
	STILL = "still"
)

const (
	DefaultBaseURL  = "http://localhost:8000"
	UploadPath      = "/api/upload/"
	DefaultCallerID = "default_user"

	// multipart field names of the upload endpoint
	FormFieldFile   = "file"
	FormFieldUserID = "user_id"
	UploadFileName  = "image.jpg"
	UploadMimeType  = "image/jpeg"

	// Photo files are named after their capture time.
	PhotoFileLayout = "2006-01-02-15-04-05"
)

const (
	DefaultConnectTimeout = 90 * time.Second
	DefaultReadTimeout    = 90 * time.Second
	DefaultWriteTimeout   = 90 * time.Second

	DefaultFailureWindow  = 5 * time.Second
	DefaultRequestTimeout = 30 * time.Second

	DefaultMaxImageBytes    = 20 << 20
	DefaultMaxResponseBytes = 32 << 20
)

const (
	DefaultAdvisorBaseURL   = ""
	DefaultAdvisorModel     = "gpt-4o-mini"
	DefaultAdvisorMaxTokens = 400
)
