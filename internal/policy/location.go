package policy

import "github.com/kestrel-proxy/dispatchcore/internal/apierror"

// locationTable maps an ISO country code (or the "global" fallback) to a
// backend URL prefix. It is a configuration artifact: swap it out at build
// time for a different region layout.
var locationTable = map[string]string{
	// North America
	"us": "https://us-east.example.com", "us-east": "https://us-east.example.com",
	"us-central": "https://us-east.example.com", "ca": "https://us-east.example.com",
	"ca-east": "https://us-east.example.com", "mx": "https://us-east.example.com",
	"us-west": "https://us-west.example.com", "ca-west": "https://us-west.example.com",
	// Europe
	"ie": "https://eu-west.example.com", "uk": "https://eu-west.example.com",
	"fr": "https://eu-west.example.com", "de": "https://eu-west.example.com",
	"nl": "https://eu-west.example.com", "be": "https://eu-west.example.com",
	"es": "https://eu-west.example.com", "pt": "https://eu-west.example.com",
	"pl": "https://eu-central.example.com", "cz": "https://eu-central.example.com",
	"at": "https://eu-central.example.com", "ch": "https://eu-central.example.com",
	"hu": "https://eu-central.example.com",
	// Africa
	"ng": "https://africa.example.com", "gh": "https://africa.example.com",
	"ke": "https://africa.example.com", "za": "https://africa.example.com",
	"eg": "https://africa.example.com",
	// Middle East
	"ae": "https://middle-east.example.com", "sa": "https://middle-east.example.com",
	"qa": "https://middle-east.example.com", "il": "https://middle-east.example.com",
	// Asia
	"in": "https://asia-south.example.com", "pk": "https://asia-south.example.com",
	"bd": "https://asia-south.example.com", "lk": "https://asia-south.example.com",
	"jp": "https://asia-east.example.com", "kr": "https://asia-east.example.com",
	"tw": "https://asia-east.example.com",
	"sg": "https://asia-southeast.example.com", "id": "https://asia-southeast.example.com",
	"th": "https://asia-southeast.example.com", "vn": "https://asia-southeast.example.com",
	"ph": "https://asia-southeast.example.com",
	// Oceania
	"au": "https://australia.example.com", "nz": "https://australia.example.com",
	// Fallback
	"global": "https://us-east.example.com",
}

// LocationBased returns a Policy that resolves the request's location tag
// through the static table above. An unknown tag fails with InternalError
// rather than silently falling through to another policy -- the caller
// decides whether to retry with a different algorithm.
//
// The chosen URL is matched against Candidates by prefix so the table's
// canonical region hostnames can stand in for whichever concrete backend
// URL was configured for that region.
func LocationBased() Policy {
	return func(s Snapshot) (string, error) {
		prefix, ok := locationTable[s.LocationTag]
		if !ok {
			return "", apierror.New(apierror.InternalError, "unknown location tag "+s.LocationTag)
		}

		healthy := healthyCandidates(s)
		for _, url := range healthy {
			if len(url) >= len(prefix) && url[:len(prefix)] == prefix {
				return url, nil
			}
		}
		return "", apierror.New(apierror.NoBackendAvailable, "no backend registered for location "+s.LocationTag)
	}
}
