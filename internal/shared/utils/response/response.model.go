package response

// Envelope is the JSON shape every handler replies with. Data carries the
// payload on success; Errors carries validation or failure details. The
// status code is repeated in the body so clients logging only bodies keep it.
type Envelope struct {
	Status     string      `json:"status"`
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Errors     interface{} `json:"errors,omitempty"`
}
