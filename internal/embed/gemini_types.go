package embed

// Wire types for the Gemini embedContent endpoint.
// https://ai.google.dev/gemini-api/docs/embeddings

// GeminiEmbedRequest is the request body for an embedContent call.
type GeminiEmbedRequest struct {
	Model                string        `json:"model"`
	Content              GeminiContent `json:"content"`
	TaskType             string        `json:"taskType"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

// GeminiContent holds the text parts to embed.
type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is a single text fragment.
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiEmbedResponse is the success response body.
type GeminiEmbedResponse struct {
	Embedding GeminiEmbeddingValues `json:"embedding"`
}

// GeminiEmbeddingValues carries the embedding vector.
type GeminiEmbeddingValues struct {
	Values []float32 `json:"values"`
}

// GeminiErrorResponse is the error response body.
type GeminiErrorResponse struct {
	Error GeminiErrorDetail `json:"error"`
}

// GeminiErrorDetail describes an API failure.
type GeminiErrorDetail struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}
