package vote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/thomas-api/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CreditVote(ctx context.Context, raw map[string]any) error {
	return m.Called(ctx, raw).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVoteHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "голос засчитан",
			body: `{"user":"123456789012345678","type":"upvote"}`,
			setupMock: func(m *MockService) {
				m.On("CreditVote", mock.Anything, map[string]any{"user": "123456789012345678", "type": "upvote"}).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK"}`,
		},
		{
			name: "числовой id сохраняет точность",
			body: `{"id":123456789012345678}`,
			setupMock: func(m *MockService) {
				m.On("CreditVote", mock.Anything, map[string]any{"id": json.Number("123456789012345678")}).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "некорректный JSON",
			body:           `{bad`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name: "неизвестная форма",
			body: `{"guild":"1"}`,
			setupMock: func(m *MockService) {
				m.On("CreditVote", mock.Anything, mock.Anything).Return(models.ErrMalformedRequest)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"malformed vote payload"`,
		},
		{
			name: "неизвестный пользователь",
			body: `{"user":"1"}`,
			setupMock: func(m *MockService) {
				m.On("CreditVote", mock.Anything, mock.Anything).Return(models.ErrUnknownUser)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"unknown user"`,
		},
		{
			name: "ошибка хранилища",
			body: `{"user":"1"}`,
			setupMock: func(m *MockService) {
				m.On("CreditVote", mock.Anything, mock.Anything).Return(errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/vote", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
			svc.AssertExpectations(t)
		})
	}
}
