package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/siherrmann/ragchat"
	"github.com/siherrmann/ragchat/core/index"
	"github.com/siherrmann/ragchat/core/pipeline"
	"github.com/siherrmann/ragchat/helper"
	"github.com/siherrmann/ragchat/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newTestChatbot(t *testing.T, answer string) (*ragchat.Chatbot, *slog.Logger) {
	t.Helper()

	embed := func(text string) ([]float32, error) {
		lower := strings.ToLower(text)
		return []float32{
			float32(strings.Count(lower, "technova")),
			float32(strings.Count(lower, "founded")),
			1,
		}, nil
	}
	embedder := pipeline.NewEmbedder("test", 3, embed, 1)
	complete := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
		return answer, nil
	}

	config := helper.DefaultConfiguration()
	config.Ingestion.DocsDirectory = filepath.Join(t.TempDir(), "docs")
	logger := helper.NewLogger(slog.LevelError)

	chatbot, err := ragchat.NewChatbot(config, index.NewMemoryIndex(embedder.Dimension), embedder, complete, logger)
	require.NoError(t, err)

	return chatbot, logger
}

func newTestClient(t *testing.T, answer string) (*testClient, *ragchat.Chatbot) {
	t.Helper()

	chatbot, logger := newTestChatbot(t, answer)
	server := httptest.NewServer(New(chatbot, logger).Handler())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testClient{t: t, server: server, client: &http.Client{Jar: jar}}, chatbot
}

func (c *testClient) do(method string, path string, body []byte, contentType string) (*http.Response, APIResponse) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.server.URL+path, bytes.NewReader(body))
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var envelope APIResponse
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&envelope))
	}
	return resp, envelope
}

func (c *testClient) ask(query string) (*http.Response, APIResponse) {
	body, err := json.Marshal(askRequest{Query: query})
	require.NoError(c.t, err)
	return c.do(http.MethodPost, "/api/ask", body, "application/json")
}

func (c *testClient) upload(files map[string]string) (*http.Response, APIResponse) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(c.t, err)
		_, err = part.Write([]byte(content))
		require.NoError(c.t, err)
	}
	require.NoError(c.t, writer.Close())
	return c.do(http.MethodPost, "/api/upload", body.Bytes(), writer.FormDataContentType())
}

func decodeData(t *testing.T, envelope APIResponse, target interface{}) {
	t.Helper()
	data, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func TestHealth(t *testing.T) {
	client, _ := newTestClient(t, "unused")

	resp, envelope := client.do(http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
	var health healthResponse
	decodeData(t, envelope, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Chunks)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAskFlow(t *testing.T) {
	t.Run("Empty index answers with no information", func(t *testing.T) {
		client, _ := newTestClient(t, "invented")

		resp, envelope := client.ask("When was Technova founded?")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var answer askResponse
		decodeData(t, envelope, &answer)
		assert.Equal(t, model.NoInformationMessage, answer.Answer)
		assert.NotEmpty(t, answer.SessionID)
	})

	t.Run("Upload then ask answers from the documents", func(t *testing.T) {
		client, chatbot := newTestClient(t, "Technova was founded in 2023.")

		resp, envelope := client.upload(map[string]string{"about.txt": "Technova was founded in 2023"})
		require.Equal(t, http.StatusOK, resp.StatusCode, envelope.Error)
		var report model.IngestionReport
		decodeData(t, envelope, &report)
		assert.Equal(t, 1, report.Chunks)
		assert.FileExists(t, filepath.Join(chatbot.Config.Ingestion.DocsDirectory, "about.txt"))

		_, envelope = client.ask("When was Technova founded?")
		var answer askResponse
		decodeData(t, envelope, &answer)
		assert.Equal(t, "Technova was founded in 2023.", answer.Answer)

		_, envelope = client.do(http.MethodGet, "/api/history", nil, "")
		var history historyResponse
		decodeData(t, envelope, &history)
		assert.True(t, history.DocumentsProcessed)
		require.Len(t, history.Messages, 2)
		assert.Equal(t, model.RoleUser, history.Messages[0].Role)
		assert.Equal(t, answer.SessionID, history.SessionID, "Cookie should keep the session")
	})

	t.Run("Blocked answer is refused", func(t *testing.T) {
		client, _ := newTestClient(t, "This is proprietary.")
		resp, envelope := client.upload(map[string]string{"about.txt": "Technova was founded in 2023"})
		require.Equal(t, http.StatusOK, resp.StatusCode, envelope.Error)

		_, envelope = client.ask("When was Technova founded?")

		var answer askResponse
		decodeData(t, envelope, &answer)
		assert.Equal(t, model.RefusalMessage, answer.Answer)
	})

	t.Run("Invalid JSON is rejected", func(t *testing.T) {
		client, _ := newTestClient(t, "unused")

		resp, envelope := client.do(http.MethodPost, "/api/ask", []byte("{"), "application/json")

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.False(t, envelope.Success)
		assert.NotEmpty(t, envelope.Error)
	})
}

func TestUpload(t *testing.T) {
	t.Run("Unsupported file type is rejected", func(t *testing.T) {
		client, _ := newTestClient(t, "unused")

		resp, envelope := client.upload(map[string]string{"data.csv": "a,b"})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, envelope.Error, "Unsupported file")
	})

	t.Run("Missing files are rejected", func(t *testing.T) {
		client, _ := newTestClient(t, "unused")

		resp, _ := client.upload(map[string]string{})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Mixed upload with an unsupported file saves nothing", func(t *testing.T) {
		client, chatbot := newTestClient(t, "unused")

		resp, envelope := client.upload(map[string]string{
			"a.txt": "Technova was founded in 2023",
			"b.exe": "binary",
		})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, envelope.Error, "b.exe")
		assert.NoFileExists(t, filepath.Join(chatbot.Config.Ingestion.DocsDirectory, "a.txt"), "Expected the supported file to not be saved")

		resp, envelope = client.do(http.MethodPost, "/api/ingest", nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, envelope.Error)
		var report model.IngestionReport
		decodeData(t, envelope, &report)
		assert.Equal(t, 0, report.Chunks, "Expected nothing left behind to index")
	})

	t.Run("Path components of the file name are dropped", func(t *testing.T) {
		client, chatbot := newTestClient(t, "unused")

		resp, envelope := client.upload(map[string]string{"../../escape.txt": "Technova"})

		require.Equal(t, http.StatusOK, resp.StatusCode, envelope.Error)
		assert.FileExists(t, filepath.Join(chatbot.Config.Ingestion.DocsDirectory, "escape.txt"))
	})
}

func TestIngestEndpoint(t *testing.T) {
	client, chatbot := newTestClient(t, "unused")
	require.NoError(t, os.MkdirAll(chatbot.Config.Ingestion.DocsDirectory, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(chatbot.Config.Ingestion.DocsDirectory, "about.md"), []byte("Technova was founded in 2023"), 0600))

	resp, envelope := client.do(http.MethodPost, "/api/ingest", nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode, envelope.Error)
	var report model.IngestionReport
	decodeData(t, envelope, &report)
	assert.Equal(t, []string{"about.md"}, report.Files)
}

func TestSessionEndpoints(t *testing.T) {
	t.Run("Clear chat keeps the session and documents flag", func(t *testing.T) {
		client, _ := newTestClient(t, "Technova was founded in 2023.")
		client.upload(map[string]string{"about.txt": "Technova was founded in 2023"})
		_, envelope := client.ask("When was Technova founded?")
		var answer askResponse
		decodeData(t, envelope, &answer)

		_, envelope = client.do(http.MethodPost, "/api/chat/clear", nil, "")

		var history historyResponse
		decodeData(t, envelope, &history)
		assert.Equal(t, answer.SessionID, history.SessionID)
		assert.Empty(t, history.Messages)
		assert.True(t, history.DocumentsProcessed)
	})

	t.Run("Reset starts a new session", func(t *testing.T) {
		client, _ := newTestClient(t, "Technova was founded in 2023.")
		client.upload(map[string]string{"about.txt": "Technova was founded in 2023"})
		_, envelope := client.ask("When was Technova founded?")
		var answer askResponse
		decodeData(t, envelope, &answer)

		_, envelope = client.do(http.MethodPost, "/api/session/reset", nil, "")

		var history historyResponse
		decodeData(t, envelope, &history)
		assert.NotEqual(t, answer.SessionID, history.SessionID)
		assert.Empty(t, history.Messages)
		assert.False(t, history.DocumentsProcessed)

		_, envelope = client.do(http.MethodGet, "/api/history", nil, "")
		var current historyResponse
		decodeData(t, envelope, &current)
		assert.Equal(t, history.SessionID, current.SessionID, "Cookie should point to the new session")
	})
}

func TestClearIndexEndpoint(t *testing.T) {
	client, chatbot := newTestClient(t, "Technova was founded in 2023.")
	resp, envelope := client.upload(map[string]string{"about.txt": "Technova was founded in 2023"})
	require.Equal(t, http.StatusOK, resp.StatusCode, envelope.Error)

	resp, envelope = client.do(http.MethodDelete, "/api/index", nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode, envelope.Error)
	count, err := chatbot.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, envelope = client.ask("When was Technova founded?")
	var answer askResponse
	decodeData(t, envelope, &answer)
	assert.Equal(t, model.NoInformationMessage, answer.Answer)
}

func TestMethodRouting(t *testing.T) {
	client, _ := newTestClient(t, "unused")

	resp, err := client.client.Get(client.server.URL + "/api/ask")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSessionStorage(t *testing.T) {
	t.Run("Cookieless reads store no session", func(t *testing.T) {
		chatbot, logger := newTestChatbot(t, "unused")
		srv := New(chatbot, logger)
		handler := srv.Handler()

		for i := 0; i < 500; i++ {
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/history", nil))
			require.Equal(t, http.StatusOK, recorder.Code)
			assert.Empty(t, recorder.Result().Cookies(), "Expected no session cookie on a read")
		}

		assert.Equal(t, 0, srv.sessions.Len(), "Expected history reads to not store sessions")
	})

	t.Run("Cookieless asks are capped", func(t *testing.T) {
		chatbot, logger := newTestChatbot(t, "unused")
		chatbot.Config.Server.MaxSessions = 10
		srv := New(chatbot, logger)
		handler := srv.Handler()

		for i := 0; i < 200; i++ {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"query":"When was Technova founded?"}`))
			handler.ServeHTTP(recorder, request)
			require.Equal(t, http.StatusOK, recorder.Code)
		}

		assert.LessOrEqual(t, srv.sessions.Len(), 10, "Expected the session count to stay within the limit")
	})
}
