// Package domain models requests to and results from the Google Maps
// Geocoding API (v3).
//
// # Endpoint
//
// All lookups are GET requests against a single path:
//
//	<protocol>://<domain>/maps/api/geocode/json?<params>
//
// The domain defaults to maps.googleapis.com. Localized domains such as
// maps.google.co.uk bias results toward that country.
//
// # Parameters
//
// Forward geocoding sends "address"; reverse geocoding sends "latlng".
// Both send "sensor" as the lowercase strings "true" or "false".
//
// Coordinates are written "lat,lng" in decimal degrees, latitude first:
//
//	"40.714224,-73.961452"
//
// Viewport bounds are two coordinates separated by a pipe, south-west corner
// first:
//
//	"34.172684,-118.604794|34.236144,-118.500938"
//
// Region is a ccTLD two-character code ("es", "uk"). Language is a Google
// language code ("en", "pt-BR").
//
// # Premium accounts
//
// Premier customers add "client=<client id>" and sign the request. The
// signature is an HMAC-SHA1 over the exact path and query string
// ("/maps/api/geocode/json?..."), keyed by the URL-safe base64 decoded secret,
// itself URL-safe base64 encoded and appended as "&signature=<sig>". Any byte
// difference in the signed string yields a rejected request, so the query
// must be encoded exactly once. See [Status] for how rejections surface.
//
// # Response
//
//	{
//	  "status": "OK",
//	  "results": [
//	    {
//	      "formatted_address": "1600 Amphitheatre Parkway, Mountain View, CA, USA",
//	      "geometry": {"location": {"lat": 37.4224764, "lng": -122.0842499}}
//	    }
//	  ]
//	}
//
// Results keep the order the API returns them in. When "results" is empty
// the "status" field explains why; an empty result set with status "OK" is
// reported as an empty [Response], not an error.
package domain
