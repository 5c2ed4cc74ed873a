package emotion

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/utils"
	"go.uber.org/zap"
)

var ErrNoEmotion = errors.New("classifier returned no emotion")

// Client talks to a DeepFace compatible analysis API.
type Client struct {
	baseURL string
	log     *zap.Logger
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[string]
}

type analyzeRequest struct {
	Img              string   `json:"img"`
	Actions          []string `json:"actions"`
	EnforceDetection bool     `json:"enforce_detection"`
}

type analyzeResponse struct {
	Results []struct {
		DominantEmotion string             `json:"dominant_emotion"`
		Emotion         map[string]float64 `json:"emotion"`
	} `json:"results"`
	Error string `json:"error"`
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		client: &http.Client{
			Timeout: timeout,
		},
		breaker: utils.NewBreaker[string]("emotion-classifier", log),
	}
}

// Classify returns the dominant emotion label for the face in img, e.g. "happy".
func (c *Client) Classify(ctx context.Context, img image.Image) (string, error) {
	label, err := c.breaker.Execute(func() (string, error) {
		return c.analyze(ctx, img)
	})
	if err != nil {
		return "", err
	}
	return label, nil
}

func (c *Client) analyze(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, shrink(img), imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	payload := analyzeRequest{
		Img:              "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Actions:          []string{"emotion"},
		EnforceDetection: false,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("classifier API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Error != "" {
		return "", fmt.Errorf("classifier error: %s", result.Error)
	}
	if len(result.Results) == 0 {
		return "", ErrNoEmotion
	}

	label := strings.TrimSpace(result.Results[0].DominantEmotion)
	if label == "" {
		return "", ErrNoEmotion
	}

	c.log.Debug("Classified photo", zap.String("emotion", label))
	return label, nil
}
