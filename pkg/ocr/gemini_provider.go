package ocr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// GeminiProvider performs OCR through the Gemini generateContent API with an
// inline image part. Flash is enough for transcription and keeps cost low.
type GeminiProvider struct {
	ApiKey string
	Model  string
}

func NewGeminiProvider(apiKey string) Provider {
	return &GeminiProvider{
		ApiKey: apiKey,
		Model:  "gemini-2.0-flash",
	}
}

const transcribePrompt = "Transcribe all readable text in this image. Return only the text, no commentary."

type generatePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *generateInline `json:"inline_data,omitempty"`
}

type generateInline struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContentRequest struct {
	Contents []struct {
		Parts []generatePart `json:"parts"`
	} `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) Extract(imagePath string) (string, error) {
	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("ocr: failed to read image: %w", err)
	}

	var req generateContentRequest
	req.Contents = append(req.Contents, struct {
		Parts []generatePart `json:"parts"`
	}{
		Parts: []generatePart{
			{Text: transcribePrompt},
			{InlineData: &generateInline{
				MimeType: "image/jpeg",
				Data:     base64.StdEncoding.EncodeToString(imageBytes),
			}},
		},
	})

	reqJson, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent",
		p.Model,
	)

	httpReq, err := http.NewRequest("POST", endpoint, bytes.NewBuffer(reqJson))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("x-goog-api-key", p.ApiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	res, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("error from gemini response, code %d, body %s", res.StatusCode, string(resByte))
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(resByte, &parsed); err != nil {
		return "", err
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", ErrExtractionFailed
	}

	text := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", ErrExtractionFailed
	}
	return text, nil
}
