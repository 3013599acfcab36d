package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const systemPrompt = "You are a professional trader specialized in Bitcoin swing trading. " +
	"You produce precise signals based on technical analysis."

// OpenAI calls an OpenAI-compatible chat-completions endpoint and parses
// the SIGNAL/CONFIDENCE/REASON reply protocol.
type OpenAI struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

// NewOpenAI builds a client. timeout bounds every Evaluate call in addition
// to whatever deadline the caller's context carries.
func NewOpenAI(url, apiKey, model string, timeout time.Duration) *OpenAI {
	return &OpenAI{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Evaluate asks the model for a signal. Any transport, decode, or protocol
// failure maps to ErrUnavailable so the engine can degrade to HOLD.
func (o *OpenAI) Evaluate(ctx context.Context, req Request) (Advice, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: 0.5,
		MaxTokens:   150,
	})
	if err != nil {
		return Advice{}, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return Advice{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return Advice{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Advice{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(b))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Advice{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return Advice{}, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	advice := parseAdvice(parsed.Choices[0].Message.Content)
	log.Printf("advisory signal: %s (confidence %.2f)", advice.Signal, advice.Confidence)
	return advice, nil
}

func buildPrompt(req Request) string {
	trend := "BEARISH"
	if req.Features.TrendUp() {
		trend = "BULLISH"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT DATA:\n")
	fmt.Fprintf(&b, "- Price: $%s\n", req.Price)
	fmt.Fprintf(&b, "- Fast EMA: %.2f\n", req.Features.EMAFast)
	fmt.Fprintf(&b, "- Slow EMA: %.2f\n", req.Features.EMASlow)
	fmt.Fprintf(&b, "- Trend: %s\n", trend)
	fmt.Fprintf(&b, "- RSI: %.2f\n", req.Features.RSI)
	fmt.Fprintf(&b, "- Asset balance: %s\n", req.Asset)
	fmt.Fprintf(&b, "- Cash balance: $%s\n\n", req.Cash)
	b.WriteString("Goal: capture 2-8% swings. BUY only in a bullish trend with RSI not overbought. ")
	b.WriteString("SELL on trend reversal signs; a trailing stop handles downside exits. ")
	b.WriteString("HOLD when conditions are unclear.\n\n")
	b.WriteString("Answer in this exact format:\n")
	b.WriteString("SIGNAL: BUY/SELL/HOLD\nCONFIDENCE: [0.0-1.0]\nREASON: [brief technical explanation]")
	return b.String()
}

// parseAdvice reads the line-oriented reply. Anything malformed falls back
// to HOLD with zero confidence rather than failing the cycle.
func parseAdvice(content string) Advice {
	advice := Advice{Signal: SignalHold, Confidence: 0.5}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SIGNAL:"):
			s := Signal(strings.TrimSpace(strings.TrimPrefix(line, "SIGNAL:")))
			if s == SignalBuy || s == SignalSell || s == SignalHold {
				advice.Signal = s
			}
		case strings.HasPrefix(line, "CONFIDENCE:"):
			if c, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:")), 64); err == nil {
				advice.Confidence = min(max(c, 0), 1)
			}
		case strings.HasPrefix(line, "REASON:"):
			advice.Reason = strings.TrimSpace(strings.TrimPrefix(line, "REASON:"))
		}
	}
	return advice
}
