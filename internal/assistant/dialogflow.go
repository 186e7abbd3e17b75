package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	dialogflow "google.golang.org/api/dialogflow/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var dialogflowTracer = otel.Tracer("bridge.internal.assistant.dialogflow")

type intentDetector interface {
	DetectIntent(ctx context.Context, session string, req *dialogflow.GoogleCloudDialogflowV2DetectIntentRequest) (*dialogflow.GoogleCloudDialogflowV2DetectIntentResponse, error)
}

type serviceDetector struct {
	svc *dialogflow.Service
}

func (d serviceDetector) DetectIntent(ctx context.Context, session string, req *dialogflow.GoogleCloudDialogflowV2DetectIntentRequest) (*dialogflow.GoogleCloudDialogflowV2DetectIntentResponse, error) {
	return d.svc.Projects.Agent.Sessions.DetectIntent(session, req).Context(ctx).Do()
}

// DialogflowFetcher implements Fetcher with Dialogflow ES detectIntent.
type DialogflowFetcher struct {
	projectID string
	detector  intentDetector
}

// NewDialogflowFetcher creates a fetcher for the given agent project. Client
// options typically carry option.WithCredentialsFile.
func NewDialogflowFetcher(ctx context.Context, projectID string, opts ...option.ClientOption) (*DialogflowFetcher, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("assistant: dialogflow project id is required")
	}
	svc, err := dialogflow.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("assistant: failed to create dialogflow service: %w", err)
	}
	return &DialogflowFetcher{projectID: projectID, detector: serviceDetector{svc: svc}}, nil
}

// SessionPath returns the agent session resource name for a session key.
func (f *DialogflowFetcher) SessionPath(sessionKey string) string {
	return fmt.Sprintf("projects/%s/agent/sessions/%s", f.projectID, sessionKey)
}

// FetchReply sends the utterance as a text query. Reusing the session key keeps
// the agent's contexts across requests.
func (f *DialogflowFetcher) FetchReply(ctx context.Context, sessionKey, utterance, languageCode string) (RawReply, error) {
	ctx, span := dialogflowTracer.Start(ctx, "assistant.dialogflow.detect_intent")
	defer span.End()
	span.SetAttributes(
		attribute.String("bridge.dialogflow.project", f.projectID),
		attribute.String("bridge.language_code", languageCode),
	)

	resp, err := f.detector.DetectIntent(ctx, f.SessionPath(sessionKey), &dialogflow.GoogleCloudDialogflowV2DetectIntentRequest{
		QueryInput: &dialogflow.GoogleCloudDialogflowV2QueryInput{
			Text: &dialogflow.GoogleCloudDialogflowV2TextInput{
				Text:         utterance,
				LanguageCode: languageCode,
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return RawReply{}, classifyDialogflowError(err)
	}
	if resp == nil || resp.QueryResult == nil {
		err := fmt.Errorf("%w: dialogflow response has no query result", ErrCollaboratorMalformed)
		span.RecordError(err)
		return RawReply{}, err
	}

	data, err := json.Marshal(resp.QueryResult)
	if err != nil {
		return RawReply{}, fmt.Errorf("%w: %w", ErrCollaboratorMalformed, err)
	}
	raw, err := DecodeRawReply(data)
	if err != nil {
		span.RecordError(err)
		return RawReply{}, err
	}
	span.SetAttributes(attribute.Int("bridge.dialogflow.messages", len(raw.Messages)))
	return raw, nil
}

func classifyDialogflowError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: dialogflow status %d: %w", ErrCollaboratorUnavailable, apiErr.Code, err)
	}
	return fmt.Errorf("%w: dialogflow detect intent: %w", ErrCollaboratorUnavailable, err)
}
