package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const bedrockInstruction = "You are a friendly shop assistant answering WhatsApp customers. " +
	"Reply briefly in plain text suitable for a chat message."

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockFetcher implements Fetcher with a single-turn Bedrock Converse call.
type BedrockFetcher struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockFetcher wraps a Bedrock runtime client.
func NewBedrockFetcher(api bedrockConverseAPI, modelID string) *BedrockFetcher {
	if api == nil {
		panic("assistant: bedrock converse client cannot be nil")
	}
	return &BedrockFetcher{api: api, modelID: modelID}
}

// FetchReply converses with the configured model.
func (f *BedrockFetcher) FetchReply(ctx context.Context, _ string, utterance, languageCode string) (RawReply, error) {
	if strings.TrimSpace(f.modelID) == "" {
		return RawReply{}, errors.New("assistant: bedrock model id is required")
	}
	if strings.TrimSpace(utterance) == "" {
		return RawReply{}, nil
	}

	system := []brtypes.SystemContentBlock{
		&brtypes.SystemContentBlockMemberText{Value: bedrockInstruction},
	}
	if languageCode != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: "Reply in the language with code " + languageCode + "."})
	}

	out, err := f.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(f.modelID),
		System:  system,
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: utterance}},
		}},
	})
	if err != nil {
		return RawReply{}, fmt.Errorf("%w: bedrock converse: %w", ErrCollaboratorUnavailable, err)
	}

	text, err := bedrockOutputText(out)
	if err != nil {
		return RawReply{}, err
	}
	return TextReply(strings.TrimSpace(text)), nil
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil || out.Output == nil {
		return "", fmt.Errorf("%w: bedrock returned no output", ErrCollaboratorMalformed)
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("%w: unexpected bedrock output %T", ErrCollaboratorMalformed, out.Output)
	}
	var text strings.Builder
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text.WriteString(tb.Value)
		}
	}
	return text.String(), nil
}
