package protocol

import (
	"net"
	"net/url"
	"strconv"
)

// Version is the protocol version announced on every connection.
const Version = "1"

// Endpoint identifies the watch server and this client's target.
type Endpoint struct {
	Host    string
	Port    int
	Version string
	Target  string
}

// URL builds the WebSocket URL for a connection announcing compiledTimestamp.
// The server compares the timestamp with its latest build to decide whether
// this client is already current.
func (e Endpoint) URL(compiledTimestamp int64) string {
	version := e.Version
	if version == "" {
		version = Version
	}
	q := url.Values{}
	q.Set("version", version)
	q.Set("target", e.Target)
	q.Set("compiledTimestamp", strconv.FormatInt(compiledTimestamp, 10))

	u := url.URL{
		Scheme:   "ws",
		Host:     net.JoinHostPort(e.Host, strconv.Itoa(e.Port)),
		Path:     "/",
		RawQuery: q.Encode(),
	}
	return u.String()
}
