package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// EdgeHTTPEngine synthesizes speech by POSTing to any OpenAI-TTS-compatible
// HTTP endpoint. It is the one concrete networked engine shipped with this
// module, exercising the TTSEngine contract end to end.
type EdgeHTTPEngine struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewEdgeHTTPEngine builds an EdgeHTTPEngine from factory options:
// "endpoint" (required), "model" (required), "api_key_env" (optional,
// names an environment variable holding the bearer token), "timeout_s"
// (optional, default 300).
func NewEdgeHTTPEngine(name string, options map[string]string) (TTSEngine, error) {
	endpoint := options["endpoint"]
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for edgehttp engine")
	}
	model := options["model"]
	if model == "" {
		return nil, fmt.Errorf("model is required for edgehttp engine (set in options.model)")
	}

	timeout := 300 * time.Second
	if raw, ok := options["timeout_s"]; ok {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	var apiKey string
	if env := options["api_key_env"]; env != "" {
		apiKey = os.Getenv(env)
	}

	return &EdgeHTTPEngine{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (e *EdgeHTTPEngine) Name() string { return e.name }

func (e *EdgeHTTPEngine) Capabilities() Capabilities {
	return Capabilities{SupportsCloning: false, SupportsSSML: false, RequiresGPU: false}
}

type edgeTTSRequest struct {
	Model        string `json:"model"`
	Input        string `json:"input"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions,omitempty"`
}

type edgeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate converts text to speech, returning a classified failure rather
// than propagating the HTTP error directly.
func (e *EdgeHTTPEngine) Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error) {
	apiReq := edgeTTSRequest{Model: e.model, Input: req.Text, Voice: req.VoiceID}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	url := strings.TrimSuffix(e.endpoint, "/") + "/audio/speech"
	log.Printf("[engine-%s] POST %s (input_len=%d chars)", e.name, url, len(req.Text))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	start := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		log.Printf("[engine-%s] request failed after %v: %v", e.name, duration, err)
		return &GenerationResult{Success: false, ErrorKind: "generic", Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	log.Printf("[engine-%s] response: %d %s (took %v, %d bytes)", e.name, resp.StatusCode, resp.Status, duration, len(respBody))

	if resp.StatusCode != http.StatusOK {
		kind := classifyStatus(resp.StatusCode)
		var errResp edgeErrorResponse
		msg := string(respBody)
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return &GenerationResult{Success: false, ErrorKind: kind, Message: msg}, nil
	}

	return &GenerationResult{Success: true, AudioPCM: respBody, SampleRate: 0}, nil
}

func classifyStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "authentication"
	case code == http.StatusTooManyRequests:
		return "rate_limit"
	case code >= 400 && code < 500:
		return "invalid_input"
	default:
		return "generic"
	}
}

func (e *EdgeHTTPEngine) ListVoices(ctx context.Context) ([]Voice, error) {
	url := strings.TrimSuffix(e.endpoint, "/") + "/voices"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build voices request: %w", err)
	}
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read voices response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voices request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Data []struct {
			ID        string   `json:"id"`
			Name      string   `json:"name"`
			Languages []string `json:"languages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse voices response: %w", err)
	}

	voices := make([]Voice, 0, len(apiResp.Data))
	for _, v := range apiResp.Data {
		voices = append(voices, Voice{ID: v.ID, Name: v.Name, Languages: v.Languages})
	}
	return voices, nil
}

func (e *EdgeHTTPEngine) TestConnection(ctx context.Context) error {
	_, err := e.ListVoices(ctx)
	return err
}

func (e *EdgeHTTPEngine) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

var _ TTSEngine = (*EdgeHTTPEngine)(nil)
