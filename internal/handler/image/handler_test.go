package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bulatminnakhmetov/canvas2image/internal/permission"
	mediarepo "github.com/bulatminnakhmetov/canvas2image/internal/repository/media"
	"github.com/bulatminnakhmetov/canvas2image/internal/service/image"
)

// MockImageService is a mock implementation of ImageService
type MockImageService struct {
	mock.Mock
}

// SaveImage implements ImageService interface; the outcome is taken from the
// mocked return values and handed to the callback.
func (m *MockImageService) SaveImage(ctx context.Context, req image.ImageRequest, auth permission.Authorizer, cb image.Callback) {
	args := m.Called(req, auth)
	if err := args.Error(1); err != nil {
		cb.Error(err)
		return
	}
	cb.Success(args.String(0))
}

func (m *MockImageService) DeleteImage(ctx context.Context, locator string) error {
	args := m.Called(locator)
	return args.Error(0)
}

// MockMediaIndex is a mock implementation of MediaIndex
type MockMediaIndex struct {
	mock.Mock
}

func (m *MockMediaIndex) ListMedia(ctx context.Context, collection string, limit int) ([]mediarepo.Media, error) {
	args := m.Called(collection, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]mediarepo.Media), args.Error(1)
}

func (m *MockMediaIndex) GetMediaByLocator(ctx context.Context, locator string) (*mediarepo.Media, error) {
	args := m.Called(locator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mediarepo.Media), args.Error(1)
}

func newRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "/api/images", strings.NewReader(body))
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestImageHandler_SaveImage_Success(t *testing.T) {
	mockService := new(MockImageService)
	auth := permission.Scoped{}

	mockService.On("SaveImage", image.ImageRequest{Payload: "aGVsbG8=", Format: image.FormatPNG}, auth).
		Return("file:///data/Pictures/c2i_1.png", nil)

	handler := NewImageHandler(mockService, auth, nil, 1024)
	rr := httptest.NewRecorder()

	handler.SaveImage(rr, newRequest(t, `{"data":"aGVsbG8=","format":"png"}`))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var response SaveImageResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "file:///data/Pictures/c2i_1.png", response.Locator)
	mockService.AssertExpectations(t)
}

func TestImageHandler_SaveImage_FormatDefaultsToJPEG(t *testing.T) {
	mockService := new(MockImageService)
	auth := permission.Scoped{}

	mockService.On("SaveImage", image.ImageRequest{Payload: "aGVsbG8=", Format: image.FormatJPEG}, auth).
		Return("file:///data/Pictures/c2i_1.jpg", nil)

	handler := NewImageHandler(mockService, auth, nil, 1024)
	rr := httptest.NewRecorder()

	handler.SaveImage(rr, newRequest(t, `{"data":"aGVsbG8="}`))

	assert.Equal(t, http.StatusCreated, rr.Code)
	mockService.AssertExpectations(t)
}

func TestImageHandler_SaveImage_ServiceErrors(t *testing.T) {
	tests := []struct {
		name          string
		serviceErr    error
		expectedCode  int
		expectedError string
	}{
		{"Missing input", image.ErrMissingInput, http.StatusBadRequest, "Missing base64 string"},
		{"Decode failed", image.ErrDecodeFailed, http.StatusBadRequest, "The image could not be decoded"},
		{"Permission denied", image.ErrPermissionDenied, http.StatusForbidden, "Permission denied"},
		{"Storage unavailable", image.ErrStorageUnavailable, http.StatusServiceUnavailable, "Media store unavailable"},
		{"Write failed", image.ErrWriteFailed, http.StatusInternalServerError, "Error while saving image"},
		{"Unexpected error", errors.New("some internal error"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockService := new(MockImageService)
			mockService.On("SaveImage", mock.Anything, mock.Anything).Return("", tc.serviceErr)

			handler := NewImageHandler(mockService, permission.Scoped{}, nil, 1024)
			rr := httptest.NewRecorder()

			handler.SaveImage(rr, newRequest(t, `{"data":"x","format":"png"}`))

			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.expectedError)
			mockService.AssertExpectations(t)
		})
	}
}

func TestImageHandler_SaveImage_InvalidBody(t *testing.T) {
	mockService := new(MockImageService)
	handler := NewImageHandler(mockService, permission.Scoped{}, nil, 1024)
	rr := httptest.NewRecorder()

	handler.SaveImage(rr, newRequest(t, `{"data":`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid request body")
	mockService.AssertNotCalled(t, "SaveImage", mock.Anything, mock.Anything)
}

func TestImageHandler_SaveImage_TooLarge(t *testing.T) {
	mockService := new(MockImageService)
	handler := NewImageHandler(mockService, permission.Scoped{}, nil, 64)
	rr := httptest.NewRecorder()

	body := `{"data":"` + strings.Repeat("A", 256) + `","format":"png"}`
	req, err := http.NewRequest(http.MethodPost, "/api/images", bytes.NewBufferString(body))
	assert.NoError(t, err)

	handler.SaveImage(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	mockService.AssertNotCalled(t, "SaveImage", mock.Anything, mock.Anything)
}

func TestImageHandler_SaveImage_ClaimsAuthorizer(t *testing.T) {
	mockService := new(MockImageService)
	auth := permission.NewClaimsAuthorizer(true)

	mockService.On("SaveImage", mock.Anything, auth).Return("", image.ErrPermissionDenied)

	handler := NewImageHandler(mockService, auth, nil, 1024)
	rr := httptest.NewRecorder()

	handler.SaveImage(rr, newRequest(t, `{"data":"x","format":"png"}`))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	mockService.AssertExpectations(t)
}

var scannedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func indexed(id int, name string) mediarepo.Media {
	return mediarepo.Media{
		ID:          id,
		Locator:     "file:///data/Pictures/" + name,
		DisplayName: name,
		MIMEType:    "image/png",
		Collection:  "Pictures",
		ScannedAt:   scannedAt,
	}
}

func query(method, path string, params url.Values) *http.Request {
	return httptest.NewRequest(method, path+"?"+params.Encode(), nil)
}

func TestImageHandler_ListImages(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		index := new(MockMediaIndex)
		index.On("ListMedia", "Pictures", 50).Return([]mediarepo.Media{indexed(2, "c2i_2.png"), indexed(1, "c2i_1.png")}, nil)

		handler := NewImageHandler(new(MockImageService), permission.Scoped{}, index, 1024)
		rr := httptest.NewRecorder()
		handler.ListImages(rr, httptest.NewRequest(http.MethodGet, "/api/images", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var response []ImageEntryResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.Len(t, response, 2)
		assert.Equal(t, 2, response[0].ID)
		assert.Equal(t, "c2i_2.png", response[0].DisplayName)
		assert.Equal(t, "file:///data/Pictures/c2i_2.png", response[0].Locator)
		assert.True(t, scannedAt.Equal(response[0].ScannedAt))
		index.AssertExpectations(t)
	})

	t.Run("Collection and capped limit", func(t *testing.T) {
		index := new(MockMediaIndex)
		index.On("ListMedia", "Screenshots", 500).Return([]mediarepo.Media{}, nil)

		handler := NewImageHandler(new(MockImageService), permission.Scoped{}, index, 1024)
		rr := httptest.NewRecorder()
		handler.ListImages(rr, query(http.MethodGet, "/api/images", url.Values{"collection": {"Screenshots"}, "limit": {"10000"}}))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, "[]", rr.Body.String())
		index.AssertExpectations(t)
	})

	t.Run("Invalid limit", func(t *testing.T) {
		index := new(MockMediaIndex)
		handler := NewImageHandler(new(MockImageService), permission.Scoped{}, index, 1024)

		for _, limit := range []string{"abc", "0", "-3"} {
			rr := httptest.NewRecorder()
			handler.ListImages(rr, query(http.MethodGet, "/api/images", url.Values{"limit": {limit}}))
			assert.Equal(t, http.StatusBadRequest, rr.Code, limit)
		}
		index.AssertNotCalled(t, "ListMedia", mock.Anything, mock.Anything)
	})

	t.Run("Index error", func(t *testing.T) {
		index := new(MockMediaIndex)
		index.On("ListMedia", "Pictures", 50).Return(nil, errors.New("connection refused"))

		handler := NewImageHandler(new(MockImageService), permission.Scoped{}, index, 1024)
		rr := httptest.NewRecorder()
		handler.ListImages(rr, httptest.NewRequest(http.MethodGet, "/api/images", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "connection refused")
	})

	t.Run("No index", func(t *testing.T) {
		handler := NewImageHandler(new(MockImageService), permission.Scoped{}, nil, 1024)
		rr := httptest.NewRecorder()
		handler.ListImages(rr, httptest.NewRequest(http.MethodGet, "/api/images", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestImageHandler_GetImage(t *testing.T) {
	locator := "file:///data/Pictures/c2i_1.png"

	tests := []struct {
		name         string
		locator      string
		setup        func(index *MockMediaIndex)
		expectedCode int
	}{
		{
			name:    "Found",
			locator: locator,
			setup: func(index *MockMediaIndex) {
				m := indexed(1, "c2i_1.png")
				index.On("GetMediaByLocator", locator).Return(&m, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:    "Not found",
			locator: locator,
			setup: func(index *MockMediaIndex) {
				index.On("GetMediaByLocator", locator).Return(nil, mediarepo.ErrMediaNotFound)
			},
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "Missing locator",
			setup:        func(*MockMediaIndex) {},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			index := new(MockMediaIndex)
			tc.setup(index)

			handler := NewImageHandler(new(MockImageService), permission.Scoped{}, index, 1024)
			rr := httptest.NewRecorder()
			handler.GetImage(rr, query(http.MethodGet, "/api/images/entry", url.Values{"locator": {tc.locator}}))

			assert.Equal(t, tc.expectedCode, rr.Code)
			if tc.expectedCode == http.StatusOK {
				var response ImageEntryResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
				assert.Equal(t, locator, response.Locator)
				assert.Equal(t, "image/png", response.MIMEType)
			}
			index.AssertExpectations(t)
		})
	}
}

func TestImageHandler_DeleteImage(t *testing.T) {
	locator := "file:///data/Pictures/c2i_1.png"

	tests := []struct {
		name         string
		serviceErr   error
		expectedCode int
	}{
		{"Deleted", nil, http.StatusNoContent},
		{"Missing locator", image.ErrMissingLocator, http.StatusBadRequest},
		{"Not found", image.ErrImageNotFound, http.StatusNotFound},
		{"Store error", errors.New("bucket offline"), http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockService := new(MockImageService)
			mockService.On("DeleteImage", locator).Return(tc.serviceErr)

			handler := NewImageHandler(mockService, permission.Scoped{}, nil, 1024)
			rr := httptest.NewRecorder()
			handler.DeleteImage(rr, query(http.MethodDelete, "/api/images", url.Values{"locator": {locator}}))

			assert.Equal(t, tc.expectedCode, rr.Code)
			mockService.AssertExpectations(t)
		})
	}

	t.Run("Token without storage_write", func(t *testing.T) {
		mockService := new(MockImageService)
		handler := NewImageHandler(mockService, permission.NewClaimsAuthorizer(true), nil, 1024)
		rr := httptest.NewRecorder()

		handler.DeleteImage(rr, query(http.MethodDelete, "/api/images", url.Values{"locator": {locator}}))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		mockService.AssertNotCalled(t, "DeleteImage", mock.Anything)
	})
}
