package types

type SubmitRequest struct {
	Answer string `json:"answer"`
	Who    string `json:"who"`
}

type NameRequest struct {
	Who string `json:"who"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
