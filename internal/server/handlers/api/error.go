package api

// PhotoDropAPIError is the body of every non-2xx response
type PhotoDropAPIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *PhotoDropAPIError) Error() string {
	return e.Code + ": " + e.Message
}
