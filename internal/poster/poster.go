// Package poster submits JSON payloads to a remote endpoint as a single
// base64 form field.
package poster

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"
)

// Field is the form field carrying the payload.
const Field = "payload"

// DefaultTimeout bounds a request when the caller supplies no client.
const DefaultTimeout = 30 * time.Second

// Client posts payloads.
type Client struct {
	http *http.Client
}

// New returns a Client. A nil httpClient gets a client with DefaultTimeout.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{http: httpClient}
}

// Encode renders data as JSON in the layout of json.dumps defaults and
// base64-encodes it. Objects and arrays use ", " and ": " separators,
// strings are ASCII-only, and HTML characters are left unescaped.
func Encode(data any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("poster: marshal: %w", err)
	}
	raw := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return base64.StdEncoding.EncodeToString(spacedASCII(raw)), nil
}

// Post sends data to endpoint and returns the raw response. The caller
// must close the response body.
func (c *Client) Post(ctx context.Context, endpoint string, data any) (*http.Response, error) {
	encoded, err := Encode(data)
	if err != nil {
		return nil, err
	}
	form := url.Values{Field: {encoded}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("poster: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poster: post %s: %w", endpoint, err)
	}
	return resp, nil
}

// spacedASCII rewrites compact JSON from encoding/json. Separators outside
// strings gain a trailing space. Inside strings, non-ASCII runes and DEL
// become lowercase \uXXXX escapes (surrogate pairs above the BMP), HTML
// escapes emitted by nested marshalers are undone, and backspace and form
// feed use their short forms.
func spacedASCII(raw []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(raw) + len(raw)/4)
	inString := false
	for i := 0; i < len(raw); {
		c := raw[i]
		if !inString {
			b.WriteByte(c)
			switch c {
			case '"':
				inString = true
			case ',', ':':
				b.WriteByte(' ')
			}
			i++
			continue
		}
		switch {
		case c == '"':
			inString = false
			b.WriteByte(c)
			i++
		case c == '\\' && raw[i+1] == 'u':
			switch string(raw[i+2 : i+6]) {
			case "003c":
				b.WriteByte('<')
			case "003e":
				b.WriteByte('>')
			case "0026":
				b.WriteByte('&')
			case "0008":
				b.WriteString(`\b`)
			case "000c":
				b.WriteString(`\f`)
			default:
				b.Write(raw[i : i+6])
			}
			i += 6
		case c == '\\':
			b.Write(raw[i : i+2])
			i += 2
		case c == 0x7f:
			b.WriteString(`\u007f`)
			i++
		case c < utf8.RuneSelf:
			b.WriteByte(c)
			i++
		default:
			r, size := utf8.DecodeRune(raw[i:])
			if r > 0xffff {
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(&b, `\u%04x\u%04x`, hi, lo)
			} else {
				fmt.Fprintf(&b, `\u%04x`, r)
			}
			i += size
		}
	}
	return b.Bytes()
}
