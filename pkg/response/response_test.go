package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	got := Error("link not found")

	assert.Equal(t, Response{Status: StatusError, Message: "link not found"}, got)
}

func TestRender(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Render(w, r, http.StatusNotFound, LinkNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"error","message":"link not found"}`, w.Body.String())
}

func TestValidation(t *testing.T) {
	type req struct {
		Name string `json:"name" validate:"required"`
		URL  string `json:"url" validate:"required,url"`
	}

	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	tests := []struct {
		name string
		err  error
		want []ValidationError
	}{
		{
			name: "not validation error",
			err:  errors.New("boom"),
		},
		{
			name: "one error",
			err:  validate.Struct(req{Name: "", URL: "https://example.com"}),
			want: []ValidationError{
				{Field: "name", Message: "this field is required"},
			},
		},
		{
			name: "two errors",
			err:  validate.Struct(req{Name: "", URL: "not url"}),
			want: []ValidationError{
				{Field: "name", Message: "this field is required"},
				{Field: "url", Message: "invalid url"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validation(tt.err)

			assert.Equal(t, StatusError, got.Status)
			assert.Equal(t, "validation error", got.Message)
			assert.Equal(t, tt.want, got.Errors)
		})
	}
}
