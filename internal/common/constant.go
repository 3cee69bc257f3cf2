package common

const (
	// AuthorizationHeaderName carries the session credential on inbound requests.
	AuthorizationHeaderName = "Authorization"

	// BearerScheme is the only authorization scheme the API accepts.
	BearerScheme = "bearer"

	// AllowedFileExtension is the one object type the API stores.
	AllowedFileExtension = ".ply"
)
