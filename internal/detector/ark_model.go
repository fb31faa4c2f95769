package detector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"portal/internal/entity"
	"strings"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
)

//文档:https://www.volcengine.com/docs/82379/1362931

const arkDetectPrompt = `Detect the objects in this image. Reply with JSON only, no prose, in the form ` +
	`{"detections":[{"class":"person","confidence":0.9,"bbox":{"x":0,"y":0,"width":10,"height":10}}]}. ` +
	`Use COCO class names and pixel coordinates.`

// ArkModel 用火山方舟视觉对话模型做检测
type ArkModel struct {
	client *arkruntime.Client
	model  string
}

func NewArkModel(apiKey, model string) (*ArkModel, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("detector: missing VOLCENGINE_API_KEY for volcengine backend")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("detector: missing VOLCENGINE_VISION_MODEL")
	}
	return &ArkModel{client: arkruntime.NewClientWithApiKey(apiKey), model: model}, nil
}

func (m *ArkModel) Name() string { return m.model }

// Load 方舟为远程服务，无需预加载
func (m *ArkModel) Load(context.Context) error { return nil }

func (m *ArkModel) Predict(ctx context.Context, image []byte, contentType string) ([]entity.Detection, error) {
	if len(image) == 0 {
		return nil, errors.New("detector: empty image")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)

	req := volcModel.CreateChatCompletionRequest{
		Model: m.model,
		Messages: []*volcModel.ChatCompletionMessage{{
			Role: volcModel.ChatMessageRoleUser,
			Content: &volcModel.ChatCompletionMessageContent{
				ListValue: []*volcModel.ChatCompletionMessageContentPart{
					{Type: volcModel.ChatCompletionMessageContentPartTypeText, Text: arkDetectPrompt},
					{Type: volcModel.ChatCompletionMessageContentPartTypeImageURL, ImageURL: &volcModel.ChatMessageImageURL{URL: dataURL}},
				},
			},
		}},
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ark chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, errors.New("ark chat completion: empty choices")
	}
	content := resp.Choices[0].Message.Content
	if content == nil || content.StringValue == nil {
		return nil, errors.New("ark chat completion: empty content")
	}
	return parseArkAnswer(*content.StringValue)
}

// parseArkAnswer 模型可能用 ```json 包裹，取第一个 { 到最后一个 } 之间的内容
func parseArkAnswer(answer string) ([]entity.Detection, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("ark answer is not json: %s", snippet([]byte(answer)))
	}
	var payload struct {
		Detections []entity.Detection `json:"detections"`
	}
	if err := json.Unmarshal([]byte(answer[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("ark answer decode: %w", err)
	}
	return payload.Detections, nil
}
