package skill

// ResponseVersion is the protocol version written on every response.
const ResponseVersion = "1.0"

// Directive types produced by the built-in handlers.
const (
	DirectiveHTMLStart         = "Alexa.Presentation.HTML.Start"
	DirectiveHTMLHandleMessage = "Alexa.Presentation.HTML.HandleMessage"
)

// ResponseEnvelope is the document returned to the host.
type ResponseEnvelope struct {
	Version           string         `json:"version"`
	SessionAttributes map[string]any `json:"sessionAttributes,omitempty"`
	Response          Response       `json:"response"`
}

// Response is the output of one routed event.
type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Card             *Card         `json:"card,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	Directives       []Directive   `json:"directives,omitempty"`
	ShouldEndSession *bool         `json:"shouldEndSession,omitempty"`
}

// OutputSpeech is spoken text, always sent as SSML.
type OutputSpeech struct {
	Type string `json:"type"`
	SSML string `json:"ssml,omitempty"`
	Text string `json:"text,omitempty"`
}

// Reprompt is spoken when the user does not answer.
type Reprompt struct {
	OutputSpeech OutputSpeech `json:"outputSpeech"`
}

// Card is a display card rendered in the companion app.
type Card struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// Directive is a structured instruction for the host. Its shape depends on
// the "type" key.
type Directive map[string]any

// Type returns the directive type or "".
func (d Directive) Type() string {
	t, _ := d["type"].(string)
	return t
}

// IsEmpty reports whether the response carries nothing at all.
func (r *Response) IsEmpty() bool {
	return r == nil || (r.OutputSpeech == nil && r.Card == nil && r.Reprompt == nil &&
		len(r.Directives) == 0 && r.ShouldEndSession == nil)
}

// Wrap places the response in a versioned envelope.
func Wrap(resp *Response) *ResponseEnvelope {
	env := &ResponseEnvelope{Version: ResponseVersion}
	if resp != nil {
		env.Response = *resp
	}
	return env
}
