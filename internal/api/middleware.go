package api

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"evalgo.org/mycelium/models"
)

// ContextKeyDocument holds the raw body checked by ValidateJSONLD.
const ContextKeyDocument = "jsonld_document"

// acceptedContentTypes are the request body types the API reads.
var acceptedContentTypes = []string{
	"application/json",
	"application/ld+json",
	"application/n-quads",
}

// ValidateContentType middleware ensures that requests with a body have a supported Content-Type
func ValidateContentType(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := c.Request().Method

		// Only check POST, PUT, PATCH requests
		if method == "POST" || method == "PUT" || method == "PATCH" {
			contentType := c.Request().Header.Get("Content-Type")

			// Allow empty body for some requests
			if c.Request().ContentLength == 0 {
				return next(c)
			}

			for _, accepted := range acceptedContentTypes {
				if strings.HasPrefix(contentType, accepted) {
					return next(c)
				}
			}
			return BadRequestError(
				"Invalid Content-Type",
				"Content-Type must be one of "+strings.Join(acceptedContentTypes, ", ")+". Got: "+contentType,
			)
		}

		return next(c)
	}
}

// ValidateJSONLD middleware checks that a JSON-LD document carries non-empty
// @context and @type fields. The raw body is kept under ContextKeyDocument.
func ValidateJSONLD(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := c.Request().Method

		// Only validate POST and PUT requests
		if method != "POST" && method != "PUT" {
			return next(c)
		}

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return BadRequestError("Invalid request body", err.Error())
		}
		c.Request().Body = io.NopCloser(bytes.NewReader(body))

		var data map[string]interface{}
		if err := json.Unmarshal(body, &data); err != nil {
			return BadRequestError("Invalid JSON-LD", err.Error())
		}

		for _, field := range []string{"@context", "@type"} {
			value, exists := data[field]
			if !exists || value == nil || value == "" {
				return BadRequestError(
					"Invalid JSON-LD",
					field+" field is required",
				)
			}
		}

		c.Set(ContextKeyDocument, body)

		return next(c)
	}
}

// ValidateIDFormat middleware validates that resource IDs follow expected patterns
func ValidateIDFormat(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")

		// If no ID param, skip validation
		if id == "" {
			return next(c)
		}

		if strings.Contains(id, " ") {
			return BadRequestError(
				"Invalid ID format",
				"ID cannot contain spaces",
			)
		}

		if len(id) < 2 {
			return BadRequestError(
				"Invalid ID format",
				"ID must be at least 2 characters long",
			)
		}

		if len(id) > 256 {
			return BadRequestError(
				"Invalid ID format",
				"ID must not exceed 256 characters",
			)
		}

		return next(c)
	}
}

// ValidateQueryParams middleware validates common query parameters
func ValidateQueryParams(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		for _, name := range []string{"limit", "offset"} {
			raw := c.QueryParam(name)
			if raw == "" {
				continue
			}
			if n, err := strconv.Atoi(raw); err != nil || n < 0 {
				return BadRequestError(
					"Invalid "+name+" parameter",
					name+" must be a non-negative integer. Got: "+raw,
				)
			}
		}

		if severity := c.QueryParam("severity"); severity != "" {
			if !models.Severity(severity).Valid() {
				return BadRequestError(
					"Invalid severity parameter",
					"Severity must be one of: low, medium, high, critical. Got: "+severity,
				)
			}
		}

		return next(c)
	}
}

// SecurityHeaders middleware adds security headers to responses
func SecurityHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("X-Content-Type-Options", "nosniff")
		c.Response().Header().Set("X-Frame-Options", "DENY")
		c.Response().Header().Set("X-XSS-Protection", "1; mode=block")
		c.Response().Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		return next(c)
	}
}
