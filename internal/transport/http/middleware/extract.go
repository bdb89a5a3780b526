package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	maxBufferedBody = 1 << 20
	bodyFieldsKey   = "identity.body_fields"
	bearerPrefix    = "bearer "
)

// valueExtractor pulls one candidate value out of a request; "" means absent.
type valueExtractor func(c *gin.Context) string

// firstValue returns the first non-empty value produced by extractors, in order.
func firstValue(c *gin.Context, extractors []valueExtractor) string {
	for _, extract := range extractors {
		if v := strings.TrimSpace(extract(c)); v != "" {
			return v
		}
	}
	return ""
}

func cookieValue(name string) valueExtractor {
	return func(c *gin.Context) string {
		v, err := c.Cookie(name)
		if err != nil {
			return ""
		}
		return v
	}
}

func headerValue(name string) valueExtractor {
	return func(c *gin.Context) string {
		return c.GetHeader(name)
	}
}

func queryValue(name string) valueExtractor {
	return func(c *gin.Context) string {
		return c.Query(name)
	}
}

func bodyValue(field string) valueExtractor {
	return func(c *gin.Context) string {
		return bufferedBodyFields(c)[field]
	}
}

// bearerValue returns the Authorization header only when it uses the Bearer scheme.
func bearerValue(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return header
}

// bufferedBodyFields parses top-level string fields from a JSON or urlencoded body
// and puts the consumed bytes back so handlers can bind the body again.
// The parse happens at most once per request.
func bufferedBodyFields(c *gin.Context) map[string]string {
	if cached, ok := c.Get(bodyFieldsKey); ok {
		if fields, ok := cached.(map[string]string); ok {
			return fields
		}
	}

	fields := parseBodyFields(c)
	c.Set(bodyFieldsKey, fields)
	return fields
}

func parseBodyFields(c *gin.Context) map[string]string {
	fields := map[string]string{}

	req := c.Request
	if req.Body == nil || req.Body == http.NoBody || req.Method == http.MethodGet || req.Method == http.MethodHead {
		return fields
	}

	contentType := c.ContentType()
	if contentType != gin.MIMEJSON && contentType != gin.MIMEPOSTForm {
		return fields
	}

	raw, err := io.ReadAll(io.LimitReader(req.Body, maxBufferedBody+1))
	req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), req.Body))
	if err != nil || len(raw) > maxBufferedBody {
		return fields
	}

	switch contentType {
	case gin.MIMEJSON:
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fields
		}
		for key, value := range payload {
			if s, ok := value.(string); ok {
				fields[key] = s
			}
		}
	case gin.MIMEPOSTForm:
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return fields
		}
		for key := range values {
			fields[key] = values.Get(key)
		}
	}

	return fields
}
