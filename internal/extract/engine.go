// Package extract turns a receipt image into a validated field tuple using a
// vision-capable model. It performs no persistence; its only side effect is
// the outbound model call.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Engine issues one vision-model request per receipt and validates the
// response into Fields.
type Engine struct {
	model     string
	timeout   time.Duration
	withPlace bool
	log       zerolog.Logger
}

// NewEngine creates an extraction engine. timeout bounds the model call so a
// slow upstream cannot stall the upload request indefinitely.
func NewEngine(model string, timeout time.Duration, withPlace bool, log zerolog.Logger) *Engine {
	return &Engine{
		model:     model,
		timeout:   timeout,
		withPlace: withPlace,
		log:       log,
	}
}

// Extract sends the image to the model and returns the validated fields, or
// one of the classified extraction errors.
func (e *Engine) Extract(ctx context.Context, imageBytes []byte) (Fields, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return Fields{}, fmt.Errorf("%w: create genai client: %v", ErrFailed, err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildPrompt(e.withPlace)},
				{
					InlineData: &genai.Blob{
						MIMEType: "image/jpeg",
						Data:     imageBytes,
					},
				},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](samplingTemperature),
	}

	resp, err := client.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: generate content: %v", ErrFailed, err)
	}
	if resp == nil || resp.Text() == "" {
		return Fields{}, ErrEmptyResponse
	}

	e.log.Debug().Str("model", e.model).Msg("Model response received")

	return ParseResponse(resp.Text())
}
