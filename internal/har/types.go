package har

// HAR is an HTTP Archive 1.2 document. Only the parts a case is derived from
// are decoded.
type HAR struct {
	Log *Log `json:"log"`
}

type Log struct {
	Version string   `json:"version"`
	Creator *Creator `json:"creator"`
	Entries []*Entry `json:"entries"`
}

type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Entry is one recorded request/response pair.
type Entry struct {
	StartedDateTime string    `json:"startedDateTime"`
	Time            float64   `json:"time"`
	Request         *Request  `json:"request"`
	Response        *Response `json:"response"`
}

type Request struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	Headers     []*Header      `json:"headers"`
	QueryString []*QueryString `json:"queryString"`
	PostData    *PostData      `json:"postData,omitempty"`
}

type Response struct {
	Status  int       `json:"status"`
	Headers []*Header `json:"headers"`
	Content *Content  `json:"content"`
}

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type QueryString struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type PostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

// Content is the recorded response body. Encoding is "base64" for binary
// bodies, which are not inspected.
type Content struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}
