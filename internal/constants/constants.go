package constants

// TMDBBaseURL is the standard base URL for the TMDB v3 API.
const TMDBBaseURL = "https://api.themoviedb.org/3"

// BangumiBaseURL is the standard base URL for the Bangumi v0 API.
const BangumiBaseURL = "https://api.bgm.tv"

// UserAgent identifies the service to the catalog providers.
const UserAgent = "animatch/1.0"

// DefaultListenAddr is the default bind address for the HTTP service.
const DefaultListenAddr = ":8620"

// Expiry windows for the persistent store, in days.
const (
	MetadataCacheExpiryDays = 7
	MemoryExpiryDays        = 90
)
