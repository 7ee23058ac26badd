package shared

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     bool
		errContains string
	}{
		{name: "valid json", body: `{"title": "pay rent"}`},
		{name: "invalid json", body: `{"title": "x",}`, wantErr: true, errContains: "invalid character"},
		{name: "empty body", body: "", wantErr: true, errContains: "EOF"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tc.body))
			var target struct {
				Title string `json:"title"`
			}
			err := DecodeJSON(req, &target)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "pay rent", target.Title)
		})
	}
}

func TestDecodeJSONBodyLimit(t *testing.T) {
	body := `{"title": "` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	var target map[string]string
	assert.Error(t, DecodeJSON(req, &target))
}

type selfValidating struct {
	Name string `json:"name" validate:"required"`
}

func (s *selfValidating) Validate() error {
	if s.Name == "invalid" {
		return errors.New("invalid name")
	}
	return nil
}

type tagged struct {
	ChatID int64 `json:"chat_id" validate:"required"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&selfValidating{Name: "ok"}))
	assert.Error(t, ValidateRequest(&selfValidating{Name: "invalid"}))

	err := ValidateRequest(&tagged{})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "chat_id", verrs[0].Field(), "json names are reported")
	assert.NoError(t, ValidateRequest(&tagged{ChatID: 5}))
}
