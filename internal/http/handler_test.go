package http

import (
	"bytes"
	"encoding/base64"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newFrameContext(t *testing.T, body *bytes.Buffer, contentType string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest("POST", "/api/v1/frames", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	return c
}

func multipartImageBody(t *testing.T, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(image); err != nil {
		t.Fatalf("write image part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestFrameFromRequestMultipart(t *testing.T) {
	image := []byte("jpeg bytes")
	body, contentType := multipartImageBody(t, image)
	c := newFrameContext(t, body, contentType)

	h := &Handler{}
	frame, err := h.frameFromRequest(c)
	if err != nil {
		t.Fatalf("frameFromRequest: %v", err)
	}
	if !bytes.Equal(frame.Data, image) {
		t.Errorf("frame data = %q, want %q", frame.Data, image)
	}
	if frame.CapturedAt.IsZero() {
		t.Error("frame has zero capture time")
	}
}

func TestFrameFromRequestMultipartRejectsOversizedImage(t *testing.T) {
	body, contentType := multipartImageBody(t, make([]byte, maxFrameBytes+1))
	c := newFrameContext(t, body, contentType)

	h := &Handler{}
	_, err := h.frameFromRequest(c)
	if err == nil {
		t.Fatal("frameFromRequest accepted an image above the frame cap")
	}
	if !strings.Contains(err.Error(), "maximum frame size") {
		t.Errorf("frameFromRequest error = %q, want frame size rejection", err)
	}
}

func TestFrameFromRequestJSON(t *testing.T) {
	image := []byte("jpeg bytes")
	payload := `{"image_base64":"` + base64.StdEncoding.EncodeToString(image) + `","width":640,"height":480}`
	c := newFrameContext(t, bytes.NewBufferString(payload), "application/json")

	h := &Handler{}
	frame, err := h.frameFromRequest(c)
	if err != nil {
		t.Fatalf("frameFromRequest: %v", err)
	}
	if !bytes.Equal(frame.Data, image) {
		t.Errorf("frame data = %q, want %q", frame.Data, image)
	}
	if frame.Width != 640 || frame.Height != 480 {
		t.Errorf("frame dimensions = %dx%d, want 640x480", frame.Width, frame.Height)
	}
}

func TestFrameFromRequestJSONRejectsInvalidBase64(t *testing.T) {
	c := newFrameContext(t, bytes.NewBufferString(`{"image_base64":"not base64!"}`), "application/json")

	h := &Handler{}
	if _, err := h.frameFromRequest(c); err == nil {
		t.Fatal("frameFromRequest accepted invalid base64")
	}
}
