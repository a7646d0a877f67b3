package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model/responses"

	"modelbench/pkg/backend"
)

// ArkClient generates text through Volcengine's Ark responses API.
type ArkClient struct {
	client *arkruntime.Client
	apiKey string
}

// NewArkClient builds a client for the given API key.
func NewArkClient(apiKey string) (*ArkClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ark api key is empty")
	}
	return &ArkClient{
		client: arkruntime.NewClientWithApiKey(apiKey),
		apiKey: apiKey,
	}, nil
}

func (c *ArkClient) Generate(ctx context.Context, req GenerateRequest) (string, *Usage, error) {
	req = orDefault(req)

	// The responses API has no separate system slot here; fold the
	// system prompt into the user text.
	text := req.Prompt
	if req.SystemPrompt != "" {
		text = req.SystemPrompt + "\n\n" + req.Prompt
	}

	arkReq := &responses.ResponsesRequest{
		Model: req.Model,
		Input: &responses.ResponsesInput{
			Union: &responses.ResponsesInput_ListValue{
				ListValue: &responses.InputItemList{ListValue: []*responses.InputItem{{
					Union: &responses.InputItem_InputMessage{
						InputMessage: &responses.ItemInputMessage{
							Role: responses.MessageRole_user,
							Content: []*responses.ContentItem{
								{
									Union: &responses.ContentItem_Text{
										Text: &responses.ContentItemText{
											Type: responses.ContentItemType_input_text,
											Text: text,
										},
									},
								},
							},
						},
					},
				}}},
			},
		},
	}

	resp, err := c.client.CreateResponses(ctx, arkReq, arkruntime.WithProjectName("modelbench"))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", nil, err
		}
		return "", nil, backend.TransientError(backend.ProviderArk, backend.DetailUnreachable, fmt.Errorf("ark API error: %w", err))
	}

	if len(resp.Output) == 0 {
		return "", nil, backend.PermanentError(backend.ProviderArk, backend.DetailMalformedResponse, errors.New("no response from model"))
	}

	for _, item := range resp.Output {
		if msg := item.GetOutputMessage(); msg != nil && len(msg.Content) > 0 {
			if textContent := msg.Content[0].GetText(); textContent != nil {
				return textContent.Text, nil, nil
			}
		}
	}

	return "", nil, backend.PermanentError(backend.ProviderArk, backend.DetailMalformedResponse, errors.New("no text content found in model response"))
}

func (c *ArkClient) Health(ctx context.Context) bool {
	return c.apiKey != ""
}
