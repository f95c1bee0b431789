package fetcher

import "math/rand"

// browserProfiles are realistic header sets we rotate through per attempt.
// The site fingerprints requests, so each attempt should look like a real
// browser rather than a fixed client signature.
var browserProfiles = []map[string]string{
	{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "uk-UA,uk;q=0.9,en;q=0.7",
		"Sec-Fetch-Dest":  "document",
		"Sec-Fetch-Mode":  "navigate",
		"DNT":             "1",
	},
	{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) " +
			"Gecko/20100101 Firefox/121.0",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "uk-UA,uk;q=0.9,en;q=0.7",
		"Sec-Fetch-Dest":  "document",
		"Sec-Fetch-Mode":  "navigate",
		"DNT":             "1",
	},
}

// RandomProfile picks one header profile for a single request attempt. The
// phone resolver reuses it so lookup calls carry the same browser identity
// conventions as page fetches.
func RandomProfile() map[string]string {
	return browserProfiles[rand.Intn(len(browserProfiles))]
}
