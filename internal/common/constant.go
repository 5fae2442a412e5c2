// Package common contains constants shared by the client layers: header
// names, backend paths and persisted state keys.
package common

// Outbound header names.
const (
	AuthorizationHeaderName = "Authorization"
	SessionKeyHeaderName    = "X-Session-Key"
	BearerPrefix            = "Bearer "
)

// Backend paths, relative to the API base URL.
const (
	LoginPath           = "/accounts/login/"
	RegisterPath        = "/accounts/register/"
	TokenRefreshPath    = "/accounts/token/refresh/"
	AdminCheckPath      = "/accounts/admin/check/"
	ProfilesPath        = "/mahasiswa/"
	MyProfilePath       = "/mahasiswa/my-profile/"
	ProfileDetailPathF  = "/mahasiswa/%d/"
	ProfileViewPathF    = "/mahasiswa/%d/view/"
	SkillEndorsePathF   = "/skills/%d/endorse/"
	ViewPathMarker      = "/view/"
	EndorsePathMarker   = "/endorse/"
	DefaultLoginPageURL = "/auth/login"
)

// Keys under which identity fields are persisted.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	SessionKeyKey   = "session_key"
	AuthSnapshotKey = "auth"
)
