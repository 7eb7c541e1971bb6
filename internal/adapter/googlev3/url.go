package googlev3

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // the API defines HMAC-SHA1 signatures
	"encoding/base64"
	"net/url"
)

const geocodePath = "/maps/api/geocode/json"

// URL returns the request URL for params, signed when premium credentials
// are configured. params is not modified.
func (c *Client) URL(params url.Values) string {
	if c.Premium() {
		return c.signedURL(params)
	}
	return c.plainURL(params)
}

func (c *Client) plainURL(params url.Values) string {
	return c.protocol + "://" + c.domain + geocodePath + "?" + params.Encode()
}

// signedURL adds the client id and appends a signature computed over the
// exact path and query that is sent.
func (c *Client) signedURL(params url.Values) string {
	signed := make(url.Values, len(params)+1)
	for k, v := range params {
		signed[k] = v
	}
	signed.Set("client", c.clientID)

	pathQuery := geocodePath + "?" + signed.Encode()
	return c.protocol + "://" + c.domain + pathQuery + "&signature=" + sign(c.secret, pathQuery)
}

// sign returns the URL-safe base64 HMAC-SHA1 of pathQuery.
func sign(secret []byte, pathQuery string) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write([]byte(pathQuery))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// redactURL hides credentials before a URL is logged.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	for _, key := range []string{"client", "signature", "key"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
