package httpclient

// Content is the request body of a call. Exactly one variant is used per
// call and it decides the outgoing Content-Type unless the caller's headers
// set one explicitly.
//
//   - NoContent: no body
//   - StringContent: text/plain; charset=utf-8
//   - FormContent: application/x-www-form-urlencoded; charset=utf-8
//   - FormCompatNoCharset: application/x-www-form-urlencoded
type Content interface {
	// contentType is the Content-Type implied by the variant, "" for none.
	contentType() string
	payload() string
}

type (
	// NoContent sends no body.
	NoContent struct{}
	// StringContent sends text as text/plain.
	StringContent string
	// FormContent sends an already-encoded form body.
	FormContent string
	// FormCompatNoCharset sends an encoded form body with the charset
	// parameter stripped from the Content-Type, as older clients did.
	FormCompatNoCharset string
)

var (
	textWithCharset = KnownContentType{MediaType: TextMediaType{}, Charset: UTF8Charset{}}
	formWithCharset = KnownContentType{MediaType: FormMediaType{}, Charset: UTF8Charset{}}
)

func (NoContent) contentType() string     { return "" }
func (StringContent) contentType() string { return textWithCharset.String() }
func (FormContent) contentType() string   { return formWithCharset.String() }

func (FormCompatNoCharset) contentType() string {
	return stripCharset(ParseContentType(formWithCharset.String())).String()
}

func (NoContent) payload() string             { return "" }
func (c StringContent) payload() string       { return string(c) }
func (c FormContent) payload() string         { return string(c) }
func (c FormCompatNoCharset) payload() string { return string(c) }

// stripCharset drops the charset parameter from a known content type.
func stripCharset(ct ContentType) ContentType {
	if k, ok := ct.(KnownContentType); ok {
		return KnownNoCharsetContentType{MediaType: k.MediaType}
	}
	return ct
}
