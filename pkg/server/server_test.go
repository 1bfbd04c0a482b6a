package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/de-tools/data-profiler/pkg/models/api"
	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/de-tools/data-profiler/pkg/store/uploads"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockJobController struct {
	mock.Mock
}

func (m *mockJobController) Submit(ctx context.Context, upload domain.Upload) (*domain.Job, error) {
	args := m.Called(ctx, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *mockJobController) Get(ctx context.Context, id string) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *mockJobController) List(ctx context.Context, statuses []domain.JobStatus) ([]*domain.Job, error) {
	args := m.Called(ctx, statuses)
	return args.Get(0).([]*domain.Job), args.Error(1)
}

func (m *mockJobController) Cancel(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockJobController) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newTestServer(t *testing.T) (*httptest.Server, *mockJobController, *uploads.Dir) {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))

	dir, err := uploads.Open(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dir.Close() })

	jobs := new(mockJobController)
	router, err := ConfigureRouter(logger, Config{
		Addr:            ":5000",
		ShutdownTimeout: 10 * time.Second,
		Dependencies: Dependencies{
			Files: dir,
			Jobs:  jobs,
		},
	})
	require.NoError(t, err)

	testServer := httptest.NewServer(router)
	t.Cleanup(testServer.Close)
	return testServer, jobs, dir
}

func TestWebAPI_Endpoints(t *testing.T) {
	testServer, jobs, dir := newTestServer(t)

	created := time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)
	jobs.On("List", mock.Anything, []domain.JobStatus{domain.JobStatusDone}).Return([]*domain.Job{{
		ID:        "job-1",
		Filename:  "data.csv",
		HTMLPath:  dir.Path("data.csv_report.html"),
		JSONPath:  dir.Path("data.csv_report.json"),
		Status:    domain.JobStatusDone,
		CreatedAt: created,
	}}, nil)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expected       interface{}
		parseResponse  func([]byte) (interface{}, error)
	}{
		{
			name:           "Healthz",
			path:           "/healthz",
			expectedStatus: http.StatusOK,
			expected:       "ok",
			parseResponse:  rawResponse,
		},
		{
			name:           "ListJobs",
			path:           "/api/v1/jobs?status=done",
			expectedStatus: http.StatusOK,
			expected: []api.Job{{
				ID:         "job-1",
				Filename:   "data.csv",
				Status:     "done",
				HTMLReport: "data.csv_report.html",
				JSONReport: "data.csv_report.json",
				CreatedAt:  created,
			}},
			parseResponse: unmarshalResponse[[]api.Job](),
		},
		{
			name:           "DownloadMissing",
			path:           "/download/data.csv_report.html",
			expectedStatus: http.StatusNotFound,
			expected:       "File data.csv_report.html not found\n",
			parseResponse:  rawResponse,
		},
		{
			name:           "UnknownRoute",
			path:           "/api/v1/workspaces",
			expectedStatus: http.StatusNotFound,
			expected:       "404 page not found\n",
			parseResponse:  rawResponse,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(testServer.URL + tc.path)
			require.NoError(t, err, "Failed to send request")
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "Status code mismatch")

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "Failed to read response body")

			actual, err := tc.parseResponse(body)
			require.NoError(t, err, "Failed to parse response")

			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestWebAPI_UploadThenDownload(t *testing.T) {
	testServer, jobs, dir := newTestServer(t)

	jobs.On("Submit", mock.Anything, mock.AnythingOfType("domain.Upload")).
		Return(&domain.Job{
			ID:       "job-1",
			Filename: "data.csv",
			HTMLPath: dir.Path("data.csv_report.html"),
			JSONPath: dir.Path("data.csv_report.json"),
			Status:   domain.JobStatusQueued,
		}, nil).Once()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("csv_file", "data.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, testServer.URL+"/upload", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.UploadResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "job-1", result.JobID)

	download, err := http.Get(testServer.URL + "/download/data.csv")
	require.NoError(t, err)
	defer download.Body.Close()

	assert.Equal(t, http.StatusOK, download.StatusCode)
	assert.Equal(t, "attachment; filename=data.csv", download.Header.Get("Content-Disposition"))
	content, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(content))
	jobs.AssertExpectations(t)
}

func TestWebAPI_Shutdown(t *testing.T) {
	dir, err := uploads.Open(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	defer dir.Close()

	jobs := new(mockJobController)
	jobs.On("Shutdown", mock.Anything).Return(nil).Once()

	webAPI, err := NewWebAPI(zerolog.New(zerolog.NewTestWriter(t)), Config{
		Addr:         "127.0.0.1:0",
		Dependencies: Dependencies{Files: dir, Jobs: jobs},
	})
	require.NoError(t, err)

	require.NoError(t, webAPI.Shutdown())
	jobs.AssertExpectations(t)
}

func rawResponse(data []byte) (interface{}, error) {
	return string(data), nil
}

func unmarshalResponse[T any]() func([]byte) (interface{}, error) {
	return func(data []byte) (interface{}, error) {
		var response T
		err := json.Unmarshal(data, &response)
		return response, err
	}
}
