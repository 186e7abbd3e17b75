package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dialogflow "google.golang.org/api/dialogflow/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type stubDetector struct {
	session string
	req     *dialogflow.GoogleCloudDialogflowV2DetectIntentRequest
	resp    *dialogflow.GoogleCloudDialogflowV2DetectIntentResponse
	err     error
}

func (s *stubDetector) DetectIntent(_ context.Context, session string, req *dialogflow.GoogleCloudDialogflowV2DetectIntentRequest) (*dialogflow.GoogleCloudDialogflowV2DetectIntentResponse, error) {
	s.session = session
	s.req = req
	return s.resp, s.err
}

func TestDialogflowFetcherBuildsQuery(t *testing.T) {
	stub := &stubDetector{resp: &dialogflow.GoogleCloudDialogflowV2DetectIntentResponse{
		QueryResult: &dialogflow.GoogleCloudDialogflowV2QueryResult{FulfillmentText: "Hello!"},
	}}
	f := &DialogflowFetcher{projectID: "kumaransarees-mwfy", detector: stub}

	raw, err := f.FetchReply(context.Background(), "key-1", "hi", "en")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", raw.Text)
	assert.Empty(t, raw.Messages)
	assert.Equal(t, "projects/kumaransarees-mwfy/agent/sessions/key-1", stub.session)
	require.NotNil(t, stub.req.QueryInput.Text)
	assert.Equal(t, "hi", stub.req.QueryInput.Text.Text)
	assert.Equal(t, "en", stub.req.QueryInput.Text.LanguageCode)
}

func TestDialogflowFetcherMissingQueryResult(t *testing.T) {
	f := &DialogflowFetcher{projectID: "p", detector: &stubDetector{resp: &dialogflow.GoogleCloudDialogflowV2DetectIntentResponse{}}}

	raw, err := f.FetchReply(context.Background(), "k", "hi", "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollaboratorMalformed)
	assert.Equal(t, RawReply{}, raw)
}

func TestDialogflowFetcherTransportError(t *testing.T) {
	f := &DialogflowFetcher{projectID: "p", detector: &stubDetector{err: errors.New("connection refused")}}

	_, err := f.FetchReply(context.Background(), "k", "hi", "en")
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
}

func TestDialogflowFetcherAPIError(t *testing.T) {
	f := &DialogflowFetcher{projectID: "p", detector: &stubDetector{err: &googleapi.Error{Code: http.StatusForbidden, Message: "denied"}}}

	_, err := f.FetchReply(context.Background(), "k", "hi", "en")
	require.ErrorIs(t, err, ErrCollaboratorUnavailable)
	assert.Contains(t, err.Error(), "status 403")
	var apiErr *googleapi.Error
	assert.True(t, errors.As(err, &apiErr))
}

func TestNewDialogflowFetcherRequiresProject(t *testing.T) {
	_, err := NewDialogflowFetcher(context.Background(), " ")
	assert.Error(t, err)
}

func TestDialogflowFetcherAgainstRESTServer(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"responseId": "r-1",
			"queryResult": {
				"queryText": "hi",
				"fulfillmentText": "Welcome\ncatalog.png",
				"fulfillmentMessages": [
					{"text": {"text": ["Welcome"]}},
					{"payload": {"richContent": [[{"type": "button", "text": "Yes", "postback": "yes"}]]}}
				]
			}
		}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	f, err := NewDialogflowFetcher(ctx, "demo-project",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	raw, err := f.FetchReply(ctx, "abc", "hi", "en")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(gotPath, "/projects/demo-project/agent/sessions/abc:detectIntent"), gotPath)
	assert.Equal(t, map[string]any{"text": map[string]any{"text": "hi", "languageCode": "en"}}, gotBody["queryInput"])

	assert.Equal(t, "Welcome\ncatalog.png", raw.Text)
	require.Len(t, raw.Messages, 2)
	assert.Nil(t, raw.Messages[0].Payload)
	payload, ok := raw.Messages[1].Payload.(map[string]any)
	require.True(t, ok, "payload should decode to an object, got %T", raw.Messages[1].Payload)
	assert.Contains(t, payload, "richContent")
}

func TestDecodeRawReply(t *testing.T) {
	raw, err := DecodeRawReply([]byte(`{"fulfillmentText":"hi","fulfillmentMessages":[{"payload":{"image":"a.png"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", raw.Text)
	require.Len(t, raw.Messages, 1)
	assert.Equal(t, map[string]any{"image": "a.png"}, raw.Messages[0].Payload)

	_, err = DecodeRawReply([]byte(`{"fulfillmentText":`))
	assert.ErrorIs(t, err, ErrCollaboratorMalformed)

	raw, err = DecodeRawReply([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "", raw.Text)
}
