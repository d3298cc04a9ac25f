// Package itinerary generates multi-day sailing plans through the OpenAI
// chat completion API. The model's reply is consumed as opaque JSON and
// validated structurally before it reaches the route model.
package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/saltline/passage/internal/lib/geo"
	"github.com/saltline/passage/internal/lib/route"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.GPT4o

// ErrMalformedPlan indicates the model returned content that does not
// decode into a usable plan. The caller's route state is left untouched.
var ErrMalformedPlan = errors.New("malformed itinerary response")

// ExtendedPort is a nearby port suggested alongside the day-by-day plan.
type ExtendedPort struct {
	Name        string    `json:"name"`
	Coordinates geo.Point `json:"coordinates"`
}

// Plan is the decoded itinerary: the day-by-day waypoint list plus nearby
// ports within extended cruising range.
type Plan struct {
	WeekPlan      []route.Waypoint `json:"weekPlan"`
	ExtendedPorts []ExtendedPort   `json:"extendedPorts"`
}

// PlanRequest describes the starting conditions for a trip plan.
type PlanRequest struct {
	Port      string
	Position  geo.Point
	LocalTime time.Time
	// CustomPrompt replaces the built-in system prompt when set.
	CustomPrompt string
}

// ChatCompleter is the slice of the OpenAI client the itinerary generator
// uses. Satisfied by *openai.Client; mocked in tests.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client generates sailing plans via chat completions.
type Client struct {
	api   ChatCompleter
	model string
	log   logrus.FieldLogger
}

// NewClient creates a plan generator. An empty API key yields a client
// whose calls fail, which keeps construction infallible for wiring.
func NewClient(apiKey, model string, log logrus.FieldLogger) *Client {
	if apiKey == "" {
		return newClient(nil, model, log)
	}
	return newClient(openai.NewClient(apiKey), model, log)
}

// NewClientWithAPI creates a plan generator on an existing completion API.
// Used by tests to substitute a mock.
func NewClientWithAPI(api ChatCompleter, model string, log logrus.FieldLogger) *Client {
	return newClient(api, model, log)
}

func newClient(api ChatCompleter, model string, log logrus.FieldLogger) *Client {
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{api: api, model: model, log: log}
}

// GeneratePlan asks the model for a round trip starting and ending at the
// request's port. Malformed or structurally invalid replies are reported
// as ErrMalformedPlan without partial results.
func (c *Client) GeneratePlan(ctx context.Context, req PlanRequest) (Plan, error) {
	if c.api == nil {
		return Plan{}, errors.New("OpenAI client not initialized - missing API key")
	}

	systemPrompt := defaultSystemPrompt
	if req.CustomPrompt != "" {
		systemPrompt = req.CustomPrompt
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt + responseStructure,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: sailingDataPrompt(req),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1,
		MaxTokens:   8000,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Plan{}, fmt.Errorf("%w: no choices returned", ErrMalformedPlan)
	}

	plan, err := parsePlan(resp.Choices[0].Message.Content)
	if err != nil {
		return Plan{}, err
	}

	first := plan.WeekPlan[0]
	last := plan.WeekPlan[len(plan.WeekPlan)-1]
	if first.Label != last.Label {
		// Round trips should close where they start. Tolerated, the
		// model occasionally renames the final leg.
		c.log.WithFields(logrus.Fields{
			"first": first.Label,
			"last":  last.Label,
		}).Warn("itinerary does not end at its starting port")
	}

	return plan, nil
}

// parsePlan decodes the model's reply, tolerating markdown code fences
// around the JSON body.
func parsePlan(content string) (Plan, error) {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var plan Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	if len(plan.WeekPlan) == 0 {
		return Plan{}, fmt.Errorf("%w: empty week plan", ErrMalformedPlan)
	}
	for _, w := range plan.WeekPlan {
		if !geo.Valid(w.Position) {
			return Plan{}, fmt.Errorf("%w: coordinates out of range for %q", ErrMalformedPlan, w.Label)
		}
	}
	return plan, nil
}
