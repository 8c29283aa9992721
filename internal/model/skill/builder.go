package skill

import "strings"

// ResponseBuilder accumulates the parts of a Response.
type ResponseBuilder struct {
	resp Response
}

// NewResponseBuilder returns an empty builder.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

// Speak sets the output speech.
func (b *ResponseBuilder) Speak(text string) *ResponseBuilder {
	b.resp.OutputSpeech = &OutputSpeech{Type: "SSML", SSML: toSSML(text)}
	return b
}

// Reprompt sets the reprompt speech and keeps the session open.
func (b *ResponseBuilder) Reprompt(text string) *ResponseBuilder {
	b.resp.Reprompt = &Reprompt{OutputSpeech: OutputSpeech{Type: "SSML", SSML: toSSML(text)}}
	return b.WithShouldEndSession(false)
}

// WithSimpleCard attaches a plain text card.
func (b *ResponseBuilder) WithSimpleCard(title, content string) *ResponseBuilder {
	b.resp.Card = &Card{Type: "Simple", Title: title, Content: content}
	return b
}

// WithShouldEndSession sets the session-continuation flag.
func (b *ResponseBuilder) WithShouldEndSession(end bool) *ResponseBuilder {
	b.resp.ShouldEndSession = &end
	return b
}

// AddDirective appends a directive.
func (b *ResponseBuilder) AddDirective(d Directive) *ResponseBuilder {
	b.resp.Directives = append(b.resp.Directives, d)
	return b
}

// GetResponse returns a copy of the accumulated response.
func (b *ResponseBuilder) GetResponse() *Response {
	resp := b.resp
	if b.resp.Directives != nil {
		resp.Directives = append([]Directive(nil), b.resp.Directives...)
	}
	if b.resp.ShouldEndSession != nil {
		end := *b.resp.ShouldEndSession
		resp.ShouldEndSession = &end
	}
	return &resp
}

func toSSML(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "<speak>")
	text = strings.TrimSuffix(text, "</speak>")
	return "<speak>" + text + "</speak>"
}
