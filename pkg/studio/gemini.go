package studio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

var _ Service = (*GeminiService)(nil)

// GeminiService implements Service with the Gemini API.
type GeminiService struct {
	Client *genai.Client

	// APIKey authenticates video downloads, which are plain HTTP GETs.
	APIKey string

	// HTTPClient is used for downloads. If nil, uses http.DefaultClient.
	HTTPClient *http.Client
}

// NewGeminiService creates a Gemini API client for apiKey. baseURL is
// optional and overrides the API endpoint.
func NewGeminiService(ctx context.Context, apiKey, baseURL string) (*GeminiService, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("studio: create gemini client: %w", err)
	}
	return &GeminiService{Client: client, APIKey: apiKey}, nil
}

func (g *GeminiService) GenerateText(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = geminiConvSchema(req.Schema)
	}
	if req.Grounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	resp, err := g.Client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, geminiUnwrap(err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrEmptyResult)
	}
	cand := resp.Candidates[0]
	out := &TextResponse{Text: geminiText(cand)}
	if gm := cand.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			out.Sources = append(out.Sources, Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
		}
	}
	return out, nil
}

func (g *GeminiService) GenerateImage(ctx context.Context, req *ImageRequest) (*Blob, error) {
	resp, err := g.Client.Models.GenerateImages(ctx, req.Model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    req.AspectRatio,
		OutputMIMEType: req.MIMEType,
	})
	if err != nil {
		return nil, geminiUnwrap(err)
	}
	for _, img := range resp.GeneratedImages {
		if img == nil || img.Image == nil || len(img.Image.ImageBytes) == 0 {
			continue
		}
		mime := img.Image.MIMEType
		if mime == "" {
			mime = req.MIMEType
		}
		return &Blob{MIMEType: mime, Data: img.Image.ImageBytes}, nil
	}
	return nil, fmt.Errorf("%w: no image generated", ErrEmptyResult)
}

func (g *GeminiService) EditImage(ctx context.Context, req *ImageEditRequest) (*Blob, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType),
			genai.NewPartFromText(req.Instruction),
		}, genai.RoleUser),
	}
	resp, err := g.Client.Models.GenerateContent(ctx, req.Model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		return nil, geminiUnwrap(err)
	}
	if blob := geminiInlineData(resp); blob != nil {
		return blob, nil
	}
	return nil, fmt.Errorf("%w: no image part in response", ErrEmptyResult)
}

func (g *GeminiService) SubmitVideo(ctx context.Context, req *VideoRequest) (*VideoOperation, error) {
	op, err := g.Client.Models.GenerateVideos(ctx, req.Model, req.Prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return nil, geminiUnwrap(err)
	}
	return geminiVideoOperation(op), nil
}

func (g *GeminiService) PollVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error) {
	native, ok := op.native.(*genai.GenerateVideosOperation)
	if !ok {
		native = &genai.GenerateVideosOperation{Name: op.Name}
	}
	next, err := g.Client.Operations.GetVideosOperation(ctx, native, nil)
	if err != nil {
		return nil, geminiUnwrap(err)
	}
	return geminiVideoOperation(next), nil
}

func (g *GeminiService) DownloadVideo(ctx context.Context, uri string) (*Blob, error) {
	return download(ctx, g.httpClient(), uri, g.APIKey)
}

func (g *GeminiService) GenerateSpeech(ctx context.Context, req *SpeechRequest) (*Blob, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: req.Voice},
			},
		},
	}
	resp, err := g.Client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Text), cfg)
	if err != nil {
		return nil, geminiUnwrap(err)
	}
	if blob := geminiInlineData(resp); blob != nil {
		return blob, nil
	}
	return nil, fmt.Errorf("%w: no audio part in response", ErrEmptyResult)
}

func (g *GeminiService) httpClient() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return http.DefaultClient
}

// download fetches uri with the API key sent as x-goog-api-key.
func download(ctx context.Context, client *http.Client, uri, apiKey string) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("x-goog-api-key", apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download %s: http %d: %s", uri, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return &Blob{MIMEType: strings.TrimSpace(mime), Data: data}, nil
}

func geminiVideoOperation(op *genai.GenerateVideosOperation) *VideoOperation {
	out := &VideoOperation{Name: op.Name, Done: op.Done, native: op}
	if len(op.Error) > 0 {
		out.Err = fmt.Errorf("%v", op.Error["message"])
	}
	if op.Response != nil {
		for _, v := range op.Response.GeneratedVideos {
			if v != nil && v.Video != nil && v.Video.URI != "" {
				out.URI = v.Video.URI
				break
			}
		}
	}
	return out
}

func geminiText(cand *genai.Candidate) string {
	if cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func geminiInlineData(resp *genai.GenerateContentResponse) *Blob {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return &Blob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}
		}
	}
	return nil
}

func geminiUnwrap(err error) error {
	if e, ok := err.(*apierror.APIError); ok {
		return e.Unwrap()
	}
	return err
}

func geminiConvSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}
	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}
	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       geminiConvSchema(schema.Items),
		Required:    schema.Required,
	}
	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = geminiConvSchema(prop)
		}
	}
	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}
