package httpclient

import "strings"

// =============================================================================
// MediaType
// =============================================================================

// MediaType is the media-type part of a Content-Type header value.
//
// The set is closed: the five canonical types below, plus OtherMediaType for
// anything that is not recognized. Match on it with a type switch:
//
//	switch mt := ct.MediaType.(type) {
//	case JSONMediaType:
//	    // ...
//	case OtherMediaType:
//	    fmt.Println("unrecognized:", string(mt))
//	}
type MediaType interface {
	String() string
	mediaType()
}

type (
	// FormMediaType is application/x-www-form-urlencoded.
	FormMediaType struct{}
	// XMLMediaType is application/xml.
	XMLMediaType struct{}
	// JSONMediaType is application/json.
	JSONMediaType struct{}
	// TextMediaType is text/plain.
	TextMediaType struct{}
	// HTMLMediaType is text/html.
	HTMLMediaType struct{}
	// OtherMediaType holds an unrecognized media type verbatim.
	OtherMediaType string
)

const (
	mimeForm = "application/x-www-form-urlencoded"
	mimeXML  = "application/xml"
	mimeJSON = "application/json"
	mimeText = "text/plain"
	mimeHTML = "text/html"
)

func (FormMediaType) String() string    { return mimeForm }
func (XMLMediaType) String() string     { return mimeXML }
func (JSONMediaType) String() string    { return mimeJSON }
func (TextMediaType) String() string    { return mimeText }
func (HTMLMediaType) String() string    { return mimeHTML }
func (m OtherMediaType) String() string { return string(m) }

func (FormMediaType) mediaType()  {}
func (XMLMediaType) mediaType()   {}
func (JSONMediaType) mediaType()  {}
func (TextMediaType) mediaType()  {}
func (HTMLMediaType) mediaType()  {}
func (OtherMediaType) mediaType() {}

// ParseMediaType recognizes the canonical media types case-insensitively.
// Anything else is returned as OtherMediaType with the input unchanged.
func ParseMediaType(s string) MediaType {
	switch strings.ToLower(s) {
	case mimeForm:
		return FormMediaType{}
	case mimeXML:
		return XMLMediaType{}
	case mimeJSON:
		return JSONMediaType{}
	case mimeText:
		return TextMediaType{}
	case mimeHTML:
		return HTMLMediaType{}
	default:
		return OtherMediaType(s)
	}
}

// =============================================================================
// Charset
// =============================================================================

// Charset is the charset parameter of a Content-Type: UTF8Charset or
// NotUTF8Charset carrying the original label.
type Charset interface {
	String() string
	charset()
}

type (
	// UTF8Charset is charset=utf-8.
	UTF8Charset struct{}
	// NotUTF8Charset is any other label, preserved as received.
	NotUTF8Charset string
)

func (UTF8Charset) String() string      { return "utf-8" }
func (c NotUTF8Charset) String() string { return string(c) }

func (UTF8Charset) charset()    {}
func (NotUTF8Charset) charset() {}

// ParseCharset returns UTF8Charset for "utf-8" in any case.
func ParseCharset(s string) Charset {
	if strings.EqualFold(s, "utf-8") {
		return UTF8Charset{}
	}
	return NotUTF8Charset(s)
}

// =============================================================================
// ContentType
// =============================================================================

// ContentType is a parsed Content-Type header value. It is one of
// KnownContentType, KnownNoCharsetContentType or UnknownContentType.
type ContentType interface {
	String() string
	contentType()
}

// KnownContentType is a media type with a charset parameter.
type KnownContentType struct {
	MediaType MediaType
	Charset   Charset
}

// KnownNoCharsetContentType is a bare media type.
type KnownNoCharsetContentType struct {
	MediaType MediaType
}

// UnknownContentType is an opaque value, e.g. one carrying a boundary parameter.
type UnknownContentType string

func (c KnownContentType) String() string {
	return c.MediaType.String() + "; charset=" + c.Charset.String()
}

func (c KnownNoCharsetContentType) String() string { return c.MediaType.String() }
func (c UnknownContentType) String() string        { return string(c) }

func (KnownContentType) contentType()          {}
func (KnownNoCharsetContentType) contentType() {}
func (UnknownContentType) contentType()        {}

// ParseContentType parses a Content-Type header value. It never fails:
// only a single "charset=" parameter is understood, and any other shape is
// kept as UnknownContentType.
//
//	ParseContentType("application/json; charset=utf-8")
//	// KnownContentType{JSONMediaType{}, UTF8Charset{}}
//
//	ParseContentType("multipart/form-data; boundary=xyz")
//	// UnknownContentType("multipart/form-data; boundary=xyz")
func ParseContentType(s string) ContentType {
	parts := strings.Split(s, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		return KnownNoCharsetContentType{MediaType: ParseMediaType(parts[0])}
	case 2:
		param := strings.Split(parts[1], "=")
		if len(param) == 2 && strings.TrimSpace(param[0]) == "charset" {
			return KnownContentType{
				MediaType: ParseMediaType(parts[0]),
				Charset:   ParseCharset(strings.TrimSpace(param[1])),
			}
		}
	}
	return UnknownContentType(s)
}

// =============================================================================
// Header predicates
// =============================================================================

// IsJSON reports whether the content-type header contains "json".
// The match is case-sensitive on the value as received.
func IsJSON(h Headers) bool {
	v, ok := h.Lookup(headerContentType)
	return ok && strings.Contains(v, "json")
}

// HasFormHeaderWithoutCharset reports whether the content-type header is
// exactly "application/x-www-form-urlencoded". Unlike IsJSON this is an
// equality check; a value with any parameter does not match.
func HasFormHeaderWithoutCharset(h Headers) bool {
	v, ok := h.Lookup(headerContentType)
	return ok && v == mimeForm
}

// HasNoContentType reports whether no content-type header is present.
func HasNoContentType(h Headers) bool {
	return !h.Has(headerContentType)
}
